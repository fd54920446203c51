package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

// objectivePlaceholder in a task prompt is replaced with the workflow
// prompt when the template is materialized.
const objectivePlaceholder = "{{objective}}"

// Template describes a workflow's phase graph in YAML form.
type Template struct {
	Name   string          `yaml:"name"`
	Phases []TemplatePhase `yaml:"phases"`
}

// TemplatePhase describes one phase of the graph. Phase indices are
// positional: the Nth entry is phase N, and depends_on refers to those
// positions.
type TemplatePhase struct {
	Name      string         `yaml:"name"`
	Mode      string         `yaml:"mode"`
	DependsOn []int          `yaml:"depends_on"`
	Optional  bool           `yaml:"optional"`
	Tasks     []TemplateTask `yaml:"tasks"`
}

// TemplateTask describes one agent task inside a phase.
type TemplateTask struct {
	Agent    string `yaml:"agent"`
	Prompt   string `yaml:"prompt"`
	Stream   int    `yaml:"stream"`
	Model    string `yaml:"model"`
	Optional bool   `yaml:"optional"`
}

// ParseTemplate parses and validates a YAML workflow template.
func ParseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, core.ErrValidation("TEMPLATE_SYNTAX",
			fmt.Sprintf("parsing template: %v", err))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks template invariants before materialization. Cycle
// detection happens later when the engine builds the phase graph.
func (t *Template) Validate() error {
	if len(t.Phases) == 0 {
		return core.ErrValidation("TEMPLATE_EMPTY", "template has no phases")
	}
	if len(t.Phases) > core.MaxPhases {
		return core.ErrValidation("TEMPLATE_TOO_LARGE",
			fmt.Sprintf("template has %d phases, maximum is %d", len(t.Phases), core.MaxPhases))
	}

	for i, p := range t.Phases {
		if p.Name == "" {
			return core.ErrValidation("TEMPLATE_PHASE_NAME",
				fmt.Sprintf("phase %d: name required", i))
		}
		if p.Mode != "" {
			if _, err := core.ParseMode(p.Mode); err != nil {
				return core.ErrValidation("TEMPLATE_PHASE_MODE",
					fmt.Sprintf("phase %d (%s): %v", i, p.Name, err))
			}
		}
		for _, dep := range p.DependsOn {
			if dep < 0 || dep >= len(t.Phases) {
				return core.ErrValidation("TEMPLATE_DEPENDENCY_RANGE",
					fmt.Sprintf("phase %d (%s): dependency %d out of range", i, p.Name, dep))
			}
			if dep == i {
				return core.ErrValidation("TEMPLATE_SELF_DEPENDENCY",
					fmt.Sprintf("phase %d (%s): depends on itself", i, p.Name))
			}
		}
		if len(p.Tasks) == 0 {
			return core.ErrValidation("TEMPLATE_PHASE_TASKS",
				fmt.Sprintf("phase %d (%s): at least one task required", i, p.Name))
		}
		for j, task := range p.Tasks {
			if task.Agent == "" {
				return core.ErrValidation("TEMPLATE_TASK_AGENT",
					fmt.Sprintf("phase %d (%s) task %d: agent required", i, p.Name, j))
			}
		}
	}
	return nil
}

// Materialize builds the phase list for a workflow prompt. Task prompts
// default to the workflow prompt; the {{objective}} placeholder is
// substituted where present.
func (t *Template) Materialize(prompt string) []*core.Phase {
	phases := make([]*core.Phase, 0, len(t.Phases))
	for i, tp := range t.Phases {
		mode := core.ExecutionMode(tp.Mode)
		if tp.Mode == "" {
			mode = core.ModeSequential
		}
		phase := core.NewPhase(i, tp.Name, mode)
		phase.DependsOn = append([]int(nil), tp.DependsOn...)
		phase.Optional = tp.Optional

		for _, tt := range t.Phases[i].Tasks {
			taskPrompt := tt.Prompt
			if taskPrompt == "" {
				taskPrompt = prompt
			} else {
				taskPrompt = strings.ReplaceAll(taskPrompt, objectivePlaceholder, prompt)
			}
			task := core.NewAgentTask(core.TaskID(uuid.NewString()), tt.Agent, taskPrompt).
				WithStream(tt.Stream)
			if tt.Model != "" {
				task.WithModel(tt.Model)
			}
			if tt.Optional {
				task.WithOptional()
			}
			phase.AddTask(task)
		}
		phases = append(phases, phase)
	}
	return phases
}

// DefaultTemplate is the built-in analyze/plan/implement/review/summarize
// graph used when the caller supplies no template.
func DefaultTemplate() *Template {
	return &Template{
		Name: "default",
		Phases: []TemplatePhase{
			{
				Name: "analyze",
				Mode: string(core.ModeSequential),
				Tasks: []TemplateTask{
					{Agent: "analyst", Prompt: "Analyze the following objective and identify constraints, risks, and unknowns:\n\n{{objective}}"},
				},
			},
			{
				Name:      "plan",
				Mode:      string(core.ModeSequential),
				DependsOn: []int{0},
				Tasks: []TemplateTask{
					{Agent: "planner", Prompt: "Produce a step-by-step plan for:\n\n{{objective}}"},
				},
			},
			{
				Name:      "implement",
				Mode:      string(core.ModeMultiStream),
				DependsOn: []int{1},
				Tasks: []TemplateTask{
					{Agent: "builder", Stream: 0, Prompt: "Implement the plan for:\n\n{{objective}}"},
					{Agent: "tester", Stream: 1, Prompt: "Write verification steps for:\n\n{{objective}}"},
				},
			},
			{
				Name:      "review",
				Mode:      string(core.ModeParallel),
				DependsOn: []int{2},
				Optional:  true,
				Tasks: []TemplateTask{
					{Agent: "reviewer", Prompt: "Review the implementation for:\n\n{{objective}}"},
				},
			},
			{
				Name:      "summarize",
				Mode:      string(core.ModeSequential),
				DependsOn: []int{2, 3},
				Tasks: []TemplateTask{
					{Agent: "summarizer", Prompt: "Summarize the outcome and remaining work for:\n\n{{objective}}"},
				},
			},
		},
	}
}
