package core

import (
	"fmt"
	"time"
)

// WorkflowID uniquely identifies a workflow execution.
type WorkflowID string

// WorkflowStatus represents the overall state of a workflow execution.
type WorkflowStatus string

const (
	WorkflowStatusRunning   WorkflowStatus = "running"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// WorkflowExecution represents a complete multi-phase run. It is owned
// exclusively by the workflow engine: created on submission, mutated only by
// the engine, retained until the caller discards it.
type WorkflowExecution struct {
	ID        WorkflowID
	Prompt    string
	Phases    []*Phase
	Status    WorkflowStatus
	Evidence  map[string]any
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
}

// NewWorkflowExecution creates a running execution over the given phases.
func NewWorkflowExecution(id WorkflowID, prompt string, phases []*Phase) *WorkflowExecution {
	now := time.Now()
	return &WorkflowExecution{
		ID:        id,
		Prompt:    prompt,
		Phases:    phases,
		Status:    WorkflowStatusRunning,
		Evidence:  make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
		StartedAt: &now,
	}
}

// Phase returns the phase at the given index.
func (w *WorkflowExecution) Phase(index int) (*Phase, bool) {
	if index < 0 || index >= len(w.Phases) {
		return nil, false
	}
	return w.Phases[index], true
}

// ReadyPhases returns pending phases whose dependencies are all satisfied.
func (w *WorkflowExecution) ReadyPhases() []*Phase {
	var ready []*Phase
	for _, p := range w.Phases {
		if p.IsReady(w.Phases) {
			ready = append(ready, p)
		}
	}
	return ready
}

// TerminalPhases reports whether every phase reached a terminal state.
func (w *WorkflowExecution) TerminalPhases() bool {
	for _, p := range w.Phases {
		if !p.IsTerminal() {
			return false
		}
	}
	return true
}

// MergeEvidence folds phase evidence into the workflow evidence map under a
// per-phase key.
func (w *WorkflowExecution) MergeEvidence(p *Phase) {
	if len(p.Evidence) == 0 {
		return
	}
	key := fmt.Sprintf("phase_%d_%s", p.Index, p.Name)
	w.Evidence[key] = p.Evidence
	w.UpdatedAt = time.Now()
}

// Complete transitions the workflow to a terminal status derived from phase
// outcomes: failed if any non-optional phase failed, completed otherwise.
func (w *WorkflowExecution) Complete() {
	status := WorkflowStatusCompleted
	for _, p := range w.Phases {
		if p.Status == PhaseStatusFailed && !p.Optional {
			status = WorkflowStatusFailed
			if w.Error == "" {
				w.Error = fmt.Sprintf("phase %d (%s) failed: %s", p.Index, p.Name, p.Error)
			}
		}
	}
	w.Status = status
	now := time.Now()
	w.EndedAt = &now
	w.UpdatedAt = now
}

// MarkCancelled transitions the workflow to cancelled after in-flight work
// settled.
func (w *WorkflowExecution) MarkCancelled() {
	w.Status = WorkflowStatusCancelled
	now := time.Now()
	w.EndedAt = &now
	w.UpdatedAt = now
}

// Fail transitions the workflow to failed with the given error.
func (w *WorkflowExecution) Fail(err error) {
	w.Status = WorkflowStatusFailed
	if err != nil {
		w.Error = err.Error()
	}
	now := time.Now()
	w.EndedAt = &now
	w.UpdatedAt = now
}

// IsTerminal returns true if the workflow is in a terminal state.
func (w *WorkflowExecution) IsTerminal() bool {
	return w.Status == WorkflowStatusCompleted ||
		w.Status == WorkflowStatusFailed ||
		w.Status == WorkflowStatusCancelled
}

// Elapsed returns the workflow execution duration.
func (w *WorkflowExecution) Elapsed() time.Duration {
	if w.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if w.EndedAt != nil {
		end = *w.EndedAt
	}
	return end.Sub(*w.StartedAt)
}

// Clone returns a deep copy of the execution. Status reads hand out clones
// so callers never observe or mutate engine-owned state.
func (w *WorkflowExecution) Clone() *WorkflowExecution {
	cp := *w
	cp.Phases = make([]*Phase, len(w.Phases))
	for i, p := range w.Phases {
		pc := *p
		pc.DependsOn = append([]int(nil), p.DependsOn...)
		pc.Tasks = make([]*AgentTask, len(p.Tasks))
		for j, t := range p.Tasks {
			tc := *t
			tc.Attempts = append([]Attempt(nil), t.Attempts...)
			pc.Tasks[j] = &tc
		}
		pc.Evidence = copyMap(p.Evidence)
		cp.Phases[i] = &pc
	}
	cp.Evidence = copyMap(w.Evidence)
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Result aggregates the outcome of a finished workflow.
type Result struct {
	WorkflowID      WorkflowID     `json:"workflow_id"`
	Status          WorkflowStatus `json:"status"`
	Success         bool           `json:"success"`
	CompletedPhases []int          `json:"completed_phases"`
	FailedPhases    []int          `json:"failed_phases"`
	SkippedPhases   []int          `json:"skipped_phases,omitempty"`
	Evidence        map[string]any `json:"evidence"`
	Elapsed         time.Duration  `json:"elapsed"`
}

// BuildResult derives the aggregate result from the execution's phase
// outcomes. Success is true iff no non-optional phase failed.
func (w *WorkflowExecution) BuildResult() *Result {
	r := &Result{
		WorkflowID: w.ID,
		Status:     w.Status,
		Success:    true,
		Evidence:   copyMap(w.Evidence),
		Elapsed:    w.Elapsed(),
	}
	for _, p := range w.Phases {
		switch p.Status {
		case PhaseStatusCompleted:
			r.CompletedPhases = append(r.CompletedPhases, p.Index)
		case PhaseStatusFailed:
			r.FailedPhases = append(r.FailedPhases, p.Index)
			if !p.Optional {
				r.Success = false
			}
		case PhaseStatusSkipped:
			r.SkippedPhases = append(r.SkippedPhases, p.Index)
		}
	}
	if w.Status == WorkflowStatusCancelled {
		r.Success = false
	}
	return r
}

// Validate checks workflow invariants.
func (w *WorkflowExecution) Validate() error {
	if w.ID == "" {
		return ErrValidation("WORKFLOW_ID_REQUIRED", "workflow ID cannot be empty")
	}
	if w.Prompt == "" {
		return ErrValidation(CodeEmptyPrompt, "workflow prompt cannot be empty")
	}
	if len(w.Prompt) > MaxPromptLength {
		return ErrValidation(CodePromptTooLong,
			fmt.Sprintf("prompt length %d exceeds maximum %d", len(w.Prompt), MaxPromptLength))
	}
	if len(w.Phases) == 0 {
		return ErrValidation("NO_PHASES", "workflow has no phases")
	}
	if len(w.Phases) > MaxPhases {
		return ErrValidation("TOO_MANY_PHASES",
			fmt.Sprintf("workflow has %d phases, maximum is %d", len(w.Phases), MaxPhases))
	}
	for _, p := range w.Phases {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
