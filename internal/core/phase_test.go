package core

import "testing"

func TestPhase_Transitions(t *testing.T) {
	p := NewPhase(0, "analyze", ModeSequential)

	if p.Status != PhaseStatusPending {
		t.Errorf("Status = %s, want pending", p.Status)
	}

	if err := p.MarkCompleted(); err == nil {
		t.Error("MarkCompleted() on pending phase should fail")
	}

	if err := p.MarkRunning(); err != nil {
		t.Fatalf("MarkRunning() error = %v", err)
	}
	if p.StartedAt == nil {
		t.Error("StartedAt should be set after MarkRunning")
	}

	if err := p.MarkRunning(); err == nil {
		t.Error("MarkRunning() on running phase should fail")
	}

	if err := p.MarkCompleted(); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}
	if !p.IsTerminal() {
		t.Error("completed phase should be terminal")
	}
}

func TestPhase_IsReady(t *testing.T) {
	p0 := NewPhase(0, "analyze", ModeSequential)
	p1 := NewPhase(1, "plan", ModeSequential).WithDependsOn(0)
	p2 := NewPhase(2, "execute", ModeParallel).WithDependsOn(1)
	phases := []*Phase{p0, p1, p2}

	if !p0.IsReady(phases) {
		t.Error("phase 0 with no deps should be ready")
	}
	if p1.IsReady(phases) {
		t.Error("phase 1 should not be ready before phase 0 completes")
	}

	p0.Status = PhaseStatusCompleted
	if !p1.IsReady(phases) {
		t.Error("phase 1 should be ready after phase 0 completes")
	}
	if p2.IsReady(phases) {
		t.Error("phase 2 should not be ready before phase 1 completes")
	}
}

func TestPhase_OptionalFailureSatisfiesDependents(t *testing.T) {
	p0 := NewPhase(0, "lint", ModeSequential).WithOptional()
	p1 := NewPhase(1, "build", ModeSequential).WithDependsOn(0)
	phases := []*Phase{p0, p1}

	p0.Status = PhaseStatusFailed
	if !p1.IsReady(phases) {
		t.Error("failed optional dependency should unblock dependents")
	}

	p0.Optional = false
	if p1.IsReady(phases) {
		t.Error("failed required dependency should block dependents")
	}
}

func TestPhase_Streams(t *testing.T) {
	p := NewPhase(3, "implement", ModeMultiStream)
	p.AddTask(NewAgentTask("t1", "coder", "a").WithStream(0))
	p.AddTask(NewAgentTask("t2", "coder", "b").WithStream(1))
	p.AddTask(NewAgentTask("t3", "coder", "c").WithStream(0))
	p.AddTask(NewAgentTask("t4", "coder", "d").WithStream(2))

	streams := p.Streams()
	if len(streams) != 3 {
		t.Fatalf("len(streams) = %d, want 3", len(streams))
	}
	// Order inside a stream is preserved.
	if streams[0][0].ID != "t1" || streams[0][1].ID != "t3" {
		t.Errorf("stream 0 order = [%s %s], want [t1 t3]", streams[0][0].ID, streams[0][1].ID)
	}
}

func TestPhase_StreamsSequentialFallback(t *testing.T) {
	p := NewPhase(0, "analyze", ModeSequential)
	p.AddTask(NewAgentTask("t1", "analyst", "a"))
	p.AddTask(NewAgentTask("t2", "analyst", "b"))

	streams := p.Streams()
	if len(streams) != 1 {
		t.Fatalf("len(streams) = %d, want 1", len(streams))
	}
	if len(streams[0]) != 2 {
		t.Errorf("stream size = %d, want 2", len(streams[0]))
	}
}

func TestPhase_Validate(t *testing.T) {
	tests := []struct {
		name    string
		phase   *Phase
		wantErr bool
	}{
		{"valid", NewPhase(0, "analyze", ModeSequential), false},
		{"index out of range", NewPhase(13, "over", ModeSequential), true},
		{"negative index", NewPhase(-1, "neg", ModeSequential), true},
		{"empty name", NewPhase(0, "", ModeSequential), true},
		{"bad mode", NewPhase(0, "x", ExecutionMode("bogus")), true},
		{"self dependency", NewPhase(1, "x", ModeSequential).WithDependsOn(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.phase.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("parallel"); err != nil {
		t.Errorf("ParseMode(parallel) error = %v", err)
	}
	if _, err := ParseMode("round_robin"); err == nil {
		t.Error("ParseMode(round_robin) should fail")
	}
}
