package core

import (
	"fmt"
	"time"
)

// TaskID uniquely identifies an agent task within a workflow.
type TaskID string

// TaskStatus represents the current state of an agent task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// AttemptOutcome classifies a single provider attempt.
type AttemptOutcome string

const (
	AttemptOutcomeSuccess   AttemptOutcome = "success"
	AttemptOutcomeRetryable AttemptOutcome = "retryable"
	AttemptOutcomeFatal     AttemptOutcome = "fatal"
	AttemptOutcomeSkipped   AttemptOutcome = "skipped" // provider degraded, not called
)

// Attempt records one provider call made on behalf of a task, including
// failed calls. The history is evidence; it is never pruned.
type Attempt struct {
	Provider string         `json:"provider"`
	Outcome  AttemptOutcome `json:"outcome"`
	Latency  time.Duration  `json:"latency"`
	Error    string         `json:"error,omitempty"`
	At       time.Time      `json:"at"`
}

// AgentTask is one unit of work routed to a provider: a single agent's
// contribution within a phase.
type AgentTask struct {
	ID         TaskID
	PhaseIndex int
	Agent      string
	Stream     int // stream key inside a multi-stream phase
	Prompt     string
	ContextID  string // context package reference
	Model      string
	Optional   bool
	Status     TaskStatus
	Attempts   []Attempt
	Retries    int
	Result     string
	TokensIn   int
	TokensOut  int
	Error      string
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// NewAgentTask creates a pending task for the named agent.
func NewAgentTask(id TaskID, agent, prompt string) *AgentTask {
	return &AgentTask{
		ID:     id,
		Agent:  agent,
		Prompt: prompt,
		Status: TaskStatusPending,
	}
}

// WithStream assigns the task to a stream within a multi-stream phase.
func (t *AgentTask) WithStream(stream int) *AgentTask {
	t.Stream = stream
	return t
}

// WithModel sets the model override.
func (t *AgentTask) WithModel(model string) *AgentTask {
	t.Model = model
	return t
}

// WithOptional marks the task as optional; its failure does not fail the
// owning phase.
func (t *AgentTask) WithOptional() *AgentTask {
	t.Optional = true
	return t
}

// RecordAttempt appends a provider attempt to the task history.
func (t *AgentTask) RecordAttempt(a Attempt) {
	t.Attempts = append(t.Attempts, a)
}

// ProvidersTried returns the distinct providers attempted, in first-seen order.
func (t *AgentTask) ProvidersTried() []string {
	seen := make(map[string]bool)
	var providers []string
	for _, a := range t.Attempts {
		if a.Outcome == AttemptOutcomeSkipped {
			continue
		}
		if !seen[a.Provider] {
			seen[a.Provider] = true
			providers = append(providers, a.Provider)
		}
	}
	return providers
}

// MarkRunning transitions the task to running.
func (t *AgentTask) MarkRunning() error {
	if t.Status != TaskStatusPending {
		return fmt.Errorf("cannot start task in %s state", t.Status)
	}
	t.Status = TaskStatusRunning
	now := time.Now()
	t.StartedAt = &now
	return nil
}

// MarkSucceeded transitions the task to succeeded with its result payload.
func (t *AgentTask) MarkSucceeded(result string, tokensIn, tokensOut int) error {
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("cannot complete task in %s state", t.Status)
	}
	t.Status = TaskStatusSucceeded
	t.Result = result
	t.TokensIn = tokensIn
	t.TokensOut = tokensOut
	now := time.Now()
	t.FinishedAt = &now
	return nil
}

// MarkFailed transitions the task to failed with the final error detail.
func (t *AgentTask) MarkFailed(err error) error {
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("cannot fail task in %s state", t.Status)
	}
	t.Status = TaskStatusFailed
	if err != nil {
		t.Error = err.Error()
	}
	now := time.Now()
	t.FinishedAt = &now
	return nil
}

// IsTerminal returns true if the task reached a terminal state.
func (t *AgentTask) IsTerminal() bool {
	return t.Status == TaskStatusSucceeded || t.Status == TaskStatusFailed
}

// Duration returns the task execution duration.
func (t *AgentTask) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.FinishedAt != nil {
		end = *t.FinishedAt
	}
	return end.Sub(*t.StartedAt)
}

// Validate checks task invariants.
func (t *AgentTask) Validate() error {
	if t.ID == "" {
		return ErrValidation("TASK_ID_REQUIRED", "task ID cannot be empty")
	}
	if t.Agent == "" {
		return ErrValidation("TASK_AGENT_REQUIRED", "task agent cannot be empty")
	}
	return nil
}
