package service

import (
	"testing"
	"time"
)

func TestHealthRegistry_HealthyByDefault(t *testing.T) {
	reg := NewHealthRegistry()
	if !reg.Healthy("anthropic") {
		t.Error("unknown provider should start healthy")
	}
}

func TestHealthRegistry_DegradesAfterThreshold(t *testing.T) {
	reg := NewHealthRegistry(WithFailureThreshold(3))

	reg.RecordFailure("openai")
	reg.RecordFailure("openai")
	if !reg.Healthy("openai") {
		t.Error("provider should stay healthy below the threshold")
	}

	reg.RecordFailure("openai")
	if reg.Healthy("openai") {
		t.Error("provider should degrade at the threshold")
	}
	if got := reg.ConsecutiveFailures("openai"); got != 3 {
		t.Errorf("ConsecutiveFailures = %d, want 3", got)
	}
}

func TestHealthRegistry_SuccessResetsStreak(t *testing.T) {
	reg := NewHealthRegistry(WithFailureThreshold(3))

	reg.RecordFailure("ollama")
	reg.RecordFailure("ollama")
	reg.RecordSuccess("ollama")

	if got := reg.ConsecutiveFailures("ollama"); got != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0 after success", got)
	}

	// The streak starts over, so two more failures stay under threshold.
	reg.RecordFailure("ollama")
	reg.RecordFailure("ollama")
	if !reg.Healthy("ollama") {
		t.Error("provider should be healthy with a reset streak")
	}
}

func TestHealthRegistry_CooldownElapses(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }
	reg := NewHealthRegistry(
		WithFailureThreshold(1),
		WithCooldown(30*time.Second),
		withClock(clock),
	)

	reg.RecordFailure("anthropic")
	if reg.Healthy("anthropic") {
		t.Fatal("provider should be degraded")
	}

	current = current.Add(29 * time.Second)
	if reg.Healthy("anthropic") {
		t.Error("provider should stay degraded inside the cool-down")
	}

	current = current.Add(2 * time.Second)
	if !reg.Healthy("anthropic") {
		t.Error("provider should be eligible again after the cool-down")
	}
	// The reset is sticky until the next failure.
	if !reg.Healthy("anthropic") {
		t.Error("probe eligibility should persist")
	}
}

func TestHealthRegistry_Snapshot(t *testing.T) {
	reg := NewHealthRegistry(WithFailureThreshold(1))
	reg.RecordSuccess("anthropic")
	reg.RecordFailure("openai")

	records := reg.Snapshot()
	if len(records) != 2 {
		t.Fatalf("Snapshot() returned %d records, want 2", len(records))
	}

	byName := make(map[string]ProviderRecord)
	for _, rec := range records {
		byName[rec.Name] = rec
	}
	if !byName["anthropic"].Healthy {
		t.Error("anthropic should be healthy")
	}
	if byName["openai"].Healthy {
		t.Error("openai should be degraded")
	}
	if byName["openai"].ConsecutiveFailures != 1 {
		t.Errorf("openai failures = %d, want 1", byName["openai"].ConsecutiveFailures)
	}
}

func TestHealthRegistry_ConcurrentReports(t *testing.T) {
	reg := NewHealthRegistry(WithFailureThreshold(100))

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				reg.RecordFailure("anthropic")
				reg.Healthy("anthropic")
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if got := reg.ConsecutiveFailures("anthropic"); got != 500 {
		t.Errorf("ConsecutiveFailures = %d, want 500", got)
	}
}
