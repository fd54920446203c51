package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input, fails fast
	ErrCatTimeout    ErrorCategory = "timeout"    // Provider call timed out
	ErrCatRateLimit  ErrorCategory = "rate_limit" // Provider rate limited
	ErrCatNetwork    ErrorCategory = "network"    // Transient network fault
	ErrCatAuth       ErrorCategory = "auth"       // Authentication failure
	ErrCatBudget     ErrorCategory = "budget"     // Token budget cannot be met
	ErrCatDependency ErrorCategory = "dependency" // Phase started before deps met
	ErrCatState      ErrorCategory = "state"      // Invalid state transition
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatCancelled  ErrorCategory = "cancelled"  // Cooperative cancellation
	ErrCatProvider   ErrorCategory = "provider"   // Provider-reported failure
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]any
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error. Not retryable; a task failing
// with it is not routed to further providers.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTimeout creates a retryable provider timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrRateLimit creates a retryable rate limit error.
func ErrRateLimit(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRateLimit,
		Code:      "RATE_LIMITED",
		Message:   message,
		Retryable: true,
	}
}

// ErrNetwork creates a retryable transient network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK_FAULT",
		Message:   message,
		Retryable: true,
	}
}

// ErrAuth creates a fatal authentication error. Never retried, never
// routed to a fallback provider.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatAuth,
		Code:      "AUTH_FAILED",
		Message:   message,
		Retryable: false,
	}
}

// ErrProvider creates a provider execution error with explicit retryability.
func ErrProvider(code, message string, retryable bool) *DomainError {
	return &DomainError{
		Category:  ErrCatProvider,
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}
}

// ErrBudgetExceeded indicates hard truncation could not fit the minimum
// required content into the token budget. Surfaces as a phase-level failure.
func ErrBudgetExceeded(budget, minimum int) *DomainError {
	return &DomainError{
		Category:  ErrCatBudget,
		Code:      "BUDGET_EXCEEDED",
		Message:   fmt.Sprintf("token budget %d below minimum required %d", budget, minimum),
		Retryable: false,
		Details: map[string]any{
			"budget":  budget,
			"minimum": minimum,
		},
	}
}

// ErrDependencyUnmet indicates a phase was asked to start before its
// dependencies completed. This is a programming-logic fault: the engine
// aborts the workflow loudly rather than proceeding.
func ErrDependencyUnmet(phase, dep int) *DomainError {
	return &DomainError{
		Category:  ErrCatDependency,
		Code:      "DEPENDENCY_UNMET",
		Message:   fmt.Sprintf("phase %d started before dependency %d completed", phase, dep),
		Retryable: false,
		Details: map[string]any{
			"phase":      phase,
			"dependency": dep,
		},
	}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatState,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrCancelled creates a cancellation error.
func ErrCancelled(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCancelled,
		Code:      "CANCELLED",
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable. Context cancellation is
// never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// IsFatalProviderError reports whether a provider error must fail the task
// immediately with no fallback.
func IsFatalProviderError(err error) bool {
	var domErr *DomainError
	if !errors.As(err, &domErr) {
		return false
	}
	if domErr.Retryable {
		return false
	}
	return domErr.Category == ErrCatAuth || domErr.Category == ErrCatValidation ||
		domErr.Category == ErrCatProvider
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes.
const (
	CodeWorkflowNotFound = "WORKFLOW_NOT_FOUND"
	CodeContextNotFound  = "CONTEXT_NOT_FOUND"
	CodeInvalidState     = "INVALID_STATE"
	CodeGraphCycle       = "GRAPH_CYCLE"
	CodeExecutionStuck   = "EXECUTION_STUCK"
	CodeNoProviders      = "NO_PROVIDERS"
	CodeEmptyPrompt      = "EMPTY_PROMPT"
	CodePromptTooLong    = "PROMPT_TOO_LONG"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeAgentUnknown     = "AGENT_UNKNOWN"
	CodeAllDegraded      = "ALL_PROVIDERS_DEGRADED"
)

// MaxPromptLength is the maximum allowed prompt length.
const MaxPromptLength = 100000
