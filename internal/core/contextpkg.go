package core

import (
	"fmt"
	"time"
)

// ContextType tags a context package with its compression strategy.
type ContextType string

const (
	ContextTypeStrategic ContextType = "strategic"
	ContextTypeTechnical ContextType = "technical"
	ContextTypeDefault   ContextType = "default"
)

// ValidContextType checks if a context type string is valid.
func ValidContextType(t ContextType) bool {
	switch t {
	case ContextTypeStrategic, ContextTypeTechnical, ContextTypeDefault:
		return true
	default:
		return false
	}
}

// ParseContextType converts a string to a ContextType, defaulting empty
// input to ContextTypeDefault.
func ParseContextType(s string) (ContextType, error) {
	if s == "" {
		return ContextTypeDefault, nil
	}
	t := ContextType(s)
	if !ValidContextType(t) {
		return "", fmt.Errorf("invalid context type: %s", s)
	}
	return t, nil
}

// ContextPackage is a bounded-size bundle of information carried between
// phases. Packages are immutable after creation: a compression pass produces
// new package state rather than mutating in place.
type ContextPackage struct {
	ID          string
	Type        ContextType
	TokenBudget int
	Content     string
	TokenCount  int
	Compressed  bool
	Truncated   bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the package is past its expiry.
func (c *ContextPackage) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// WithinBudget reports the token-budget invariant: after any compression
// pass the measured count must not exceed the budget.
func (c *ContextPackage) WithinBudget() bool {
	return c.TokenCount <= c.TokenBudget
}
