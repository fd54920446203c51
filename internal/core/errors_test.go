package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", ErrTimeout("deadline"), true},
		{"rate limit", ErrRateLimit("429"), true},
		{"network", ErrNetwork("conn reset"), true},
		{"auth", ErrAuth("bad key"), false},
		{"validation", ErrValidation("X", "bad input"), false},
		{"budget", ErrBudgetExceeded(10, 50), false},
		{"wrapped retryable", fmt.Errorf("calling provider: %w", ErrTimeout("t")), true},
		{"context canceled", context.Canceled, false},
		{"plain error", errors.New("boom"), false},
		{"nil-ish provider retryable", ErrProvider("OVERLOADED", "529", true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatalProviderError(t *testing.T) {
	if !IsFatalProviderError(ErrAuth("bad key")) {
		t.Error("auth errors are fatal")
	}
	if !IsFatalProviderError(ErrValidation("MALFORMED", "bad request")) {
		t.Error("malformed-request errors are fatal")
	}
	if IsFatalProviderError(ErrTimeout("t")) {
		t.Error("timeouts are not fatal")
	}
	if IsFatalProviderError(errors.New("opaque")) {
		t.Error("unclassified errors are not fatal")
	}
}

func TestDomainError_Is(t *testing.T) {
	err := ErrDependencyUnmet(2, 1)
	target := &DomainError{Category: ErrCatDependency, Code: "DEPENDENCY_UNMET"}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match category+code")
	}

	other := &DomainError{Category: ErrCatState, Code: "DEPENDENCY_UNMET"}
	if errors.Is(err, other) {
		t.Error("errors.Is should not match a different category")
	}
}

func TestDomainError_UnwrapAndDetails(t *testing.T) {
	cause := errors.New("socket closed")
	err := ErrNetwork("transport failed").WithCause(cause).WithDetail("provider", "openai")

	if !errors.Is(err, cause) {
		t.Error("Unwrap chain should reach the cause")
	}
	if err.Details["provider"] != "openai" {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestGetCategory(t *testing.T) {
	if got := GetCategory(ErrRateLimit("x")); got != ErrCatRateLimit {
		t.Errorf("GetCategory() = %s, want rate_limit", got)
	}
	if got := GetCategory(errors.New("plain")); got != ErrCatInternal {
		t.Errorf("GetCategory(plain) = %s, want internal", got)
	}
}
