package core

import (
	"context"
	"time"
)

// =============================================================================
// Provider Port
// =============================================================================

// Provider is an interchangeable completion backend. Text generation is an
// opaque capability: a request goes in, a response or classified error comes
// out. Providers own no scheduling logic.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string

	// Complete produces a completion for the request. Failures are
	// classified through the DomainError taxonomy so the dispatcher can
	// decide between retry, fallback, and immediate failure.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// HealthCheck reports whether the backend is currently reachable.
	HealthCheck(ctx context.Context) bool
}

// Message represents a single message in a completion conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CompletionRequest configures a single provider call.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Usage carries token accounting for one completion.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// CompletionResponse is the result of a successful provider call.
type CompletionResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// =============================================================================
// Agent Registry Port
// =============================================================================

// AgentDescriptor describes an agent's capability: accepted input shape and
// default model. Supplied by an external parser/loader; the engine treats it
// as a read-only lookup table.
type AgentDescriptor struct {
	Name         string `yaml:"name"`
	InputShape   string `yaml:"input_shape"` // "text", "json"
	DefaultModel string `yaml:"default_model"`
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// AgentRegistry is a read-only lookup table keyed by agent name.
type AgentRegistry interface {
	// Lookup returns the descriptor for an agent name.
	Lookup(name string) (AgentDescriptor, error)

	// List returns all known agent names.
	List() []string
}

// =============================================================================
// Evidence Sink Port
// =============================================================================

// EvidenceSink is a fire-and-forget append store for execution evidence.
// The engine never depends on read-back during execution.
type EvidenceSink interface {
	Put(ctx context.Context, workflowID WorkflowID, blob []byte) error
}

// =============================================================================
// Execution Store Port
// =============================================================================

// ExecutionStore persists workflow executions for status queries across
// process restarts.
type ExecutionStore interface {
	// Save persists an execution snapshot.
	Save(ctx context.Context, w *WorkflowExecution) error

	// Load retrieves an execution by ID. Returns a NOT_FOUND domain error
	// if the execution does not exist.
	Load(ctx context.Context, id WorkflowID) (*WorkflowExecution, error)

	// List returns summaries of all stored executions, newest first.
	List(ctx context.Context) ([]ExecutionSummary, error)

	// Delete removes a stored execution.
	Delete(ctx context.Context, id WorkflowID) error
}

// ExecutionSummary is a lightweight listing row.
type ExecutionSummary struct {
	ID        WorkflowID     `json:"id"`
	Status    WorkflowStatus `json:"status"`
	Prompt    string         `json:"prompt"` // truncated for display
	Phases    int            `json:"phases"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
