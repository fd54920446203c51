package core

import (
	"fmt"
	"time"
)

// MaxPhases is the maximum number of phases in a workflow (indices 0..12).
const MaxPhases = 13

// PhaseStatus represents the current state of a phase.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
	PhaseStatusSkipped   PhaseStatus = "skipped"
)

// ExecutionMode controls how a phase runs its tasks.
type ExecutionMode string

const (
	// ModeSequential runs the phase's tasks one after another in order.
	ModeSequential ExecutionMode = "sequential"

	// ModeParallel runs the phase's tasks concurrently under the
	// dispatcher's concurrency limit.
	ModeParallel ExecutionMode = "parallel"

	// ModeMultiStream partitions the phase's tasks into independent
	// streams. Streams run concurrently with each other; tasks inside one
	// stream run in the order assigned.
	ModeMultiStream ExecutionMode = "multi_stream"
)

// ValidMode checks if an execution mode string is valid.
func ValidMode(m ExecutionMode) bool {
	switch m {
	case ModeSequential, ModeParallel, ModeMultiStream:
		return true
	default:
		return false
	}
}

// ParseMode converts a string to an ExecutionMode with validation.
func ParseMode(s string) (ExecutionMode, error) {
	m := ExecutionMode(s)
	if !ValidMode(m) {
		return "", fmt.Errorf("invalid execution mode: %s", s)
	}
	return m, nil
}

// Phase is a named stage in the workflow dependency graph.
type Phase struct {
	Index       int
	Name        string
	Mode        ExecutionMode
	DependsOn   []int
	Optional    bool
	Tasks       []*AgentTask
	Status      PhaseStatus
	Evidence    map[string]any
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewPhase creates a pending phase.
func NewPhase(index int, name string, mode ExecutionMode) *Phase {
	return &Phase{
		Index:    index,
		Name:     name,
		Mode:     mode,
		Status:   PhaseStatusPending,
		Evidence: make(map[string]any),
	}
}

// WithDependsOn sets the dependency phase indices.
func (p *Phase) WithDependsOn(deps ...int) *Phase {
	p.DependsOn = deps
	return p
}

// WithOptional marks the phase as optional; its failure does not fail the
// workflow and does not block dependents.
func (p *Phase) WithOptional() *Phase {
	p.Optional = true
	return p
}

// AddTask assigns a task to the phase.
func (p *Phase) AddTask(t *AgentTask) {
	t.PhaseIndex = p.Index
	p.Tasks = append(p.Tasks, t)
}

// IsReady reports whether every dependency is satisfied: completed, or
// terminal for an optional phase.
func (p *Phase) IsReady(phases []*Phase) bool {
	if p.Status != PhaseStatusPending {
		return false
	}
	for _, dep := range p.DependsOn {
		if dep < 0 || dep >= len(phases) {
			return false
		}
		if !phases[dep].Satisfied() {
			return false
		}
	}
	return true
}

// Satisfied reports whether the phase unblocks its dependents.
func (p *Phase) Satisfied() bool {
	if p.Status == PhaseStatusCompleted {
		return true
	}
	if p.Optional && (p.Status == PhaseStatusFailed || p.Status == PhaseStatusSkipped) {
		return true
	}
	return false
}

// MarkRunning transitions the phase to running.
func (p *Phase) MarkRunning() error {
	if p.Status != PhaseStatusPending {
		return fmt.Errorf("cannot start phase %d in %s state", p.Index, p.Status)
	}
	p.Status = PhaseStatusRunning
	now := time.Now()
	p.StartedAt = &now
	return nil
}

// MarkCompleted transitions the phase to completed.
func (p *Phase) MarkCompleted() error {
	if p.Status != PhaseStatusRunning {
		return fmt.Errorf("cannot complete phase %d in %s state", p.Index, p.Status)
	}
	p.Status = PhaseStatusCompleted
	now := time.Now()
	p.CompletedAt = &now
	return nil
}

// MarkFailed transitions the phase to failed.
func (p *Phase) MarkFailed(err error) error {
	if p.Status != PhaseStatusRunning {
		return fmt.Errorf("cannot fail phase %d in %s state", p.Index, p.Status)
	}
	p.Status = PhaseStatusFailed
	if err != nil {
		p.Error = err.Error()
	}
	now := time.Now()
	p.CompletedAt = &now
	return nil
}

// MarkSkipped transitions a pending phase to skipped.
func (p *Phase) MarkSkipped(reason string) error {
	if p.Status != PhaseStatusPending {
		return fmt.Errorf("cannot skip phase %d in %s state", p.Index, p.Status)
	}
	p.Status = PhaseStatusSkipped
	p.Error = reason
	now := time.Now()
	p.CompletedAt = &now
	return nil
}

// IsTerminal returns true if the phase reached a terminal state.
func (p *Phase) IsTerminal() bool {
	return p.Status == PhaseStatusCompleted ||
		p.Status == PhaseStatusFailed ||
		p.Status == PhaseStatusSkipped
}

// Duration returns the phase execution duration.
func (p *Phase) Duration() time.Duration {
	if p.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if p.CompletedAt != nil {
		end = *p.CompletedAt
	}
	return end.Sub(*p.StartedAt)
}

// Streams groups the phase's tasks by stream key, preserving assignment
// order inside each stream. For non multi-stream phases every task lands in
// stream 0.
func (p *Phase) Streams() [][]*AgentTask {
	if p.Mode != ModeMultiStream {
		if len(p.Tasks) == 0 {
			return nil
		}
		return [][]*AgentTask{p.Tasks}
	}
	byStream := make(map[int][]*AgentTask)
	var order []int
	for _, t := range p.Tasks {
		if _, seen := byStream[t.Stream]; !seen {
			order = append(order, t.Stream)
		}
		byStream[t.Stream] = append(byStream[t.Stream], t)
	}
	streams := make([][]*AgentTask, 0, len(order))
	for _, k := range order {
		streams = append(streams, byStream[k])
	}
	return streams
}

// Validate checks phase invariants.
func (p *Phase) Validate() error {
	if p.Index < 0 || p.Index >= MaxPhases {
		return ErrValidation("PHASE_INDEX_RANGE",
			fmt.Sprintf("phase index %d out of range [0,%d)", p.Index, MaxPhases))
	}
	if p.Name == "" {
		return ErrValidation("PHASE_NAME_REQUIRED", "phase name cannot be empty")
	}
	if !ValidMode(p.Mode) {
		return ErrValidation("PHASE_MODE_INVALID",
			fmt.Sprintf("invalid execution mode: %s", p.Mode))
	}
	for _, dep := range p.DependsOn {
		if dep == p.Index {
			return ErrValidation("PHASE_SELF_DEPENDENCY",
				fmt.Sprintf("phase %d depends on itself", p.Index))
		}
	}
	return nil
}
