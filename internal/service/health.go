package service

import (
	"sync"
	"sync/atomic"
	"time"
)

// HealthRegistry tracks live provider health. It is an explicitly passed
// instance, never a process-wide singleton. Multiple dispatcher workers
// report on the same provider concurrently, so counters use atomic
// operations.
type HealthRegistry struct {
	mu               sync.RWMutex
	entries          map[string]*providerHealth
	failureThreshold int64
	cooldown         time.Duration
	now              func() time.Time
}

type providerHealth struct {
	consecutiveFailures atomic.Int64
	degradedUntil       atomic.Int64 // unix nanos, 0 = healthy
	lastCheck           atomic.Int64 // unix nanos of last reported outcome
}

// HealthRegistryOption configures the registry.
type HealthRegistryOption func(*HealthRegistry)

// WithFailureThreshold sets how many consecutive failures degrade a provider.
func WithFailureThreshold(n int) HealthRegistryOption {
	return func(r *HealthRegistry) {
		r.failureThreshold = int64(n)
	}
}

// WithCooldown sets the degraded cool-down window.
func WithCooldown(d time.Duration) HealthRegistryOption {
	return func(r *HealthRegistry) {
		r.cooldown = d
	}
}

// withClock overrides the time source (for testing).
func withClock(now func() time.Time) HealthRegistryOption {
	return func(r *HealthRegistry) {
		r.now = now
	}
}

// NewHealthRegistry creates a health registry.
func NewHealthRegistry(opts ...HealthRegistryOption) *HealthRegistry {
	r := &HealthRegistry{
		entries:          make(map[string]*providerHealth),
		failureThreshold: 3,
		cooldown:         30 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HealthRegistry) entry(provider string) *providerHealth {
	r.mu.RLock()
	e, ok := r.entries[provider]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[provider]; ok {
		return e
	}
	e = &providerHealth{}
	r.entries[provider] = e
	return e
}

// Healthy reports whether the provider is currently eligible for dispatch.
// A degraded provider becomes eligible again once its cool-down elapses.
func (r *HealthRegistry) Healthy(provider string) bool {
	e := r.entry(provider)
	until := e.degradedUntil.Load()
	if until == 0 {
		return true
	}
	if r.now().UnixNano() >= until {
		// Cool-down elapsed: allow one probe attempt. Clear via CAS so
		// concurrent callers don't stampede the reset.
		e.degradedUntil.CompareAndSwap(until, 0)
		return true
	}
	return false
}

// RecordSuccess resets the provider's failure streak.
func (r *HealthRegistry) RecordSuccess(provider string) {
	e := r.entry(provider)
	e.consecutiveFailures.Store(0)
	e.degradedUntil.Store(0)
	e.lastCheck.Store(r.now().UnixNano())
}

// RecordFailure increments the failure streak and degrades the provider for
// the cool-down window once it crosses the threshold.
func (r *HealthRegistry) RecordFailure(provider string) {
	e := r.entry(provider)
	failures := e.consecutiveFailures.Add(1)
	e.lastCheck.Store(r.now().UnixNano())
	if failures >= r.failureThreshold {
		e.degradedUntil.Store(r.now().Add(r.cooldown).UnixNano())
	}
}

// ConsecutiveFailures returns the provider's current failure streak.
func (r *HealthRegistry) ConsecutiveFailures(provider string) int {
	return int(r.entry(provider).consecutiveFailures.Load())
}

// ProviderRecord is a point-in-time view of one provider's health.
type ProviderRecord struct {
	Name                string    `json:"name"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DegradedUntil       time.Time `json:"degraded_until,omitempty"`
	LastCheck           time.Time `json:"last_check,omitempty"`
}

// Snapshot returns records for all providers the registry has seen.
func (r *HealthRegistry) Snapshot() []ProviderRecord {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()

	records := make([]ProviderRecord, 0, len(names))
	for _, name := range names {
		e := r.entry(name)
		rec := ProviderRecord{
			Name:                name,
			Healthy:             r.Healthy(name),
			ConsecutiveFailures: int(e.consecutiveFailures.Load()),
		}
		if until := e.degradedUntil.Load(); until > 0 {
			rec.DegradedUntil = time.Unix(0, until)
		}
		if last := e.lastCheck.Load(); last > 0 {
			rec.LastCheck = time.Unix(0, last)
		}
		records = append(records, rec)
	}
	return records
}
