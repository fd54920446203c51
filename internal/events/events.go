package events

import "time"

// Event type identifiers.
const (
	TypeWorkflowStarted   = "workflow_started"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowFailed    = "workflow_failed"
	TypeWorkflowCancelled = "workflow_cancelled"

	TypePhaseStarted   = "phase_started"
	TypePhaseCompleted = "phase_completed"
	TypePhaseFailed    = "phase_failed"
	TypePhaseSkipped   = "phase_skipped"

	TypeTaskStarted       = "task_started"
	TypeTaskCompleted     = "task_completed"
	TypeTaskFailed        = "task_failed"
	TypeProviderFallback  = "provider_fallback"
	TypeProviderDegraded  = "provider_degraded"
	TypeContextCompressed = "context_compressed"
	TypeContextTruncated  = "context_truncated"
)

// WorkflowEvent marks a workflow lifecycle transition.
type WorkflowEvent struct {
	BaseEvent
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewWorkflowStarted reports a workflow beginning execution.
func NewWorkflowStarted(workflowID string) WorkflowEvent {
	return WorkflowEvent{
		BaseEvent: newBase(TypeWorkflowStarted, workflowID),
		Status:    "running",
	}
}

// NewWorkflowCompleted reports a workflow finishing successfully.
func NewWorkflowCompleted(workflowID string) WorkflowEvent {
	return WorkflowEvent{
		BaseEvent: newBase(TypeWorkflowCompleted, workflowID),
		Status:    "completed",
	}
}

// NewWorkflowFailed reports a workflow terminal failure.
func NewWorkflowFailed(workflowID, errMsg string) WorkflowEvent {
	return WorkflowEvent{
		BaseEvent: newBase(TypeWorkflowFailed, workflowID),
		Status:    "failed",
		Error:     errMsg,
	}
}

// NewWorkflowCancelled reports a workflow cancelled after in-flight work
// settled.
func NewWorkflowCancelled(workflowID string) WorkflowEvent {
	return WorkflowEvent{
		BaseEvent: newBase(TypeWorkflowCancelled, workflowID),
		Status:    "cancelled",
	}
}

// PhaseEvent marks a phase lifecycle transition.
type PhaseEvent struct {
	BaseEvent
	PhaseIndex int           `json:"phase_index"`
	PhaseName  string        `json:"phase_name"`
	Mode       string        `json:"mode,omitempty"`
	Error      string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
}

// NewPhaseStarted reports a phase entering execution.
func NewPhaseStarted(workflowID string, index int, name, mode string) PhaseEvent {
	return PhaseEvent{
		BaseEvent:  newBase(TypePhaseStarted, workflowID),
		PhaseIndex: index,
		PhaseName:  name,
		Mode:       mode,
	}
}

// NewPhaseCompleted reports a phase completing.
func NewPhaseCompleted(workflowID string, index int, name string, elapsed time.Duration) PhaseEvent {
	return PhaseEvent{
		BaseEvent:  newBase(TypePhaseCompleted, workflowID),
		PhaseIndex: index,
		PhaseName:  name,
		Elapsed:    elapsed,
	}
}

// NewPhaseFailed reports a phase terminal failure.
func NewPhaseFailed(workflowID string, index int, name, errMsg string) PhaseEvent {
	return PhaseEvent{
		BaseEvent:  newBase(TypePhaseFailed, workflowID),
		PhaseIndex: index,
		PhaseName:  name,
		Error:      errMsg,
	}
}

// NewPhaseSkipped reports a phase skipped because a required dependency
// failed.
func NewPhaseSkipped(workflowID string, index int, name, reason string) PhaseEvent {
	return PhaseEvent{
		BaseEvent:  newBase(TypePhaseSkipped, workflowID),
		PhaseIndex: index,
		PhaseName:  name,
		Error:      reason,
	}
}

// TaskEvent marks an agent task transition or provider decision.
type TaskEvent struct {
	BaseEvent
	TaskID     string `json:"task_id"`
	Agent      string `json:"agent"`
	PhaseIndex int    `json:"phase_index"`
	Provider   string `json:"provider,omitempty"`
	Error      string `json:"error,omitempty"`
	TokensIn   int    `json:"tokens_in,omitempty"`
	TokensOut  int    `json:"tokens_out,omitempty"`
}

// NewTaskStarted reports a task being dispatched.
func NewTaskStarted(workflowID, taskID, agent string, phaseIndex int) TaskEvent {
	return TaskEvent{
		BaseEvent:  newBase(TypeTaskStarted, workflowID),
		TaskID:     taskID,
		Agent:      agent,
		PhaseIndex: phaseIndex,
	}
}

// NewTaskCompleted reports a task succeeding on the named provider.
func NewTaskCompleted(workflowID, taskID, agent, provider string, tokensIn, tokensOut int) TaskEvent {
	return TaskEvent{
		BaseEvent: newBase(TypeTaskCompleted, workflowID),
		TaskID:    taskID,
		Agent:     agent,
		Provider:  provider,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
	}
}

// NewTaskFailed reports a task exhausting all providers.
func NewTaskFailed(workflowID, taskID, agent, errMsg string) TaskEvent {
	return TaskEvent{
		BaseEvent: newBase(TypeTaskFailed, workflowID),
		TaskID:    taskID,
		Agent:     agent,
		Error:     errMsg,
	}
}

// NewProviderFallback reports the dispatcher advancing to the next
// provider in the fallback order.
func NewProviderFallback(workflowID, taskID, from, to string) TaskEvent {
	e := TaskEvent{
		BaseEvent: newBase(TypeProviderFallback, workflowID),
		TaskID:    taskID,
		Provider:  to,
	}
	e.Error = "fallback from " + from
	return e
}

// ContextEvent marks a context package budget action.
type ContextEvent struct {
	BaseEvent
	ContextID   string `json:"context_id"`
	TokenBudget int    `json:"token_budget"`
	TokenCount  int    `json:"token_count"`
}

// NewContextCompressed reports a context package compressed to budget.
func NewContextCompressed(workflowID, contextID string, budget, count int) ContextEvent {
	return ContextEvent{
		BaseEvent:   newBase(TypeContextCompressed, workflowID),
		ContextID:   contextID,
		TokenBudget: budget,
		TokenCount:  count,
	}
}

// NewContextTruncated reports a context package hard-truncated after
// compression fell short.
func NewContextTruncated(workflowID, contextID string, budget, count int) ContextEvent {
	return ContextEvent{
		BaseEvent:   newBase(TypeContextTruncated, workflowID),
		ContextID:   contextID,
		TokenBudget: budget,
		TokenCount:  count,
	}
}
