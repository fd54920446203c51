package core

import (
	"errors"
	"testing"
	"time"
)

func TestAgentTask_Transitions(t *testing.T) {
	task := NewAgentTask("t1", "analyst", "analyze this")

	if err := task.MarkSucceeded("out", 10, 20); err == nil {
		t.Error("MarkSucceeded() on pending task should fail")
	}

	if err := task.MarkRunning(); err != nil {
		t.Fatalf("MarkRunning() error = %v", err)
	}

	if err := task.MarkSucceeded("out", 10, 20); err != nil {
		t.Fatalf("MarkSucceeded() error = %v", err)
	}
	if task.Result != "out" || task.TokensIn != 10 || task.TokensOut != 20 {
		t.Errorf("result fields not recorded: %+v", task)
	}
	if !task.IsTerminal() {
		t.Error("succeeded task should be terminal")
	}
}

func TestAgentTask_MarkFailed(t *testing.T) {
	task := NewAgentTask("t1", "analyst", "p")
	if err := task.MarkRunning(); err != nil {
		t.Fatal(err)
	}
	if err := task.MarkFailed(errors.New("provider exploded")); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if task.Error != "provider exploded" {
		t.Errorf("Error = %q", task.Error)
	}
	if task.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestAgentTask_AttemptHistory(t *testing.T) {
	task := NewAgentTask("t1", "analyst", "p")

	task.RecordAttempt(Attempt{Provider: "anthropic", Outcome: AttemptOutcomeRetryable,
		Latency: 100 * time.Millisecond, Error: "timeout", At: time.Now()})
	task.RecordAttempt(Attempt{Provider: "anthropic", Outcome: AttemptOutcomeRetryable,
		Latency: 90 * time.Millisecond, Error: "timeout", At: time.Now()})
	task.RecordAttempt(Attempt{Provider: "openai", Outcome: AttemptOutcomeSuccess,
		Latency: 200 * time.Millisecond, At: time.Now()})

	if len(task.Attempts) != 3 {
		t.Fatalf("len(Attempts) = %d, want 3", len(task.Attempts))
	}

	tried := task.ProvidersTried()
	if len(tried) != 2 || tried[0] != "anthropic" || tried[1] != "openai" {
		t.Errorf("ProvidersTried() = %v, want [anthropic openai]", tried)
	}
}

func TestAgentTask_ProvidersTriedSkipsDegraded(t *testing.T) {
	task := NewAgentTask("t1", "analyst", "p")
	task.RecordAttempt(Attempt{Provider: "anthropic", Outcome: AttemptOutcomeSkipped, At: time.Now()})
	task.RecordAttempt(Attempt{Provider: "openai", Outcome: AttemptOutcomeSuccess, At: time.Now()})

	tried := task.ProvidersTried()
	if len(tried) != 1 || tried[0] != "openai" {
		t.Errorf("ProvidersTried() = %v, want [openai]", tried)
	}
}

func TestAgentTask_Validate(t *testing.T) {
	if err := NewAgentTask("", "analyst", "p").Validate(); err == nil {
		t.Error("empty ID should fail validation")
	}
	if err := NewAgentTask("t1", "", "p").Validate(); err == nil {
		t.Error("empty agent should fail validation")
	}
	if err := NewAgentTask("t1", "analyst", "p").Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
