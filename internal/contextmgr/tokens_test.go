package contextmgr

import (
	"strings"
	"testing"
)

func TestCountTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"exact boundary", "abcd", 1},
		{"one over boundary", "abcde", 2},
		{"eight chars", "abcdefgh", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountTokens(tt.input); got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCountTokens_Deterministic(t *testing.T) {
	input := strings.Repeat("the quick brown fox ", 50)
	first := CountTokens(input)
	for i := 0; i < 10; i++ {
		if got := CountTokens(input); got != first {
			t.Fatalf("CountTokens() = %d on repeat, want %d", got, first)
		}
	}
}

func TestCountTokens_Monotonic(t *testing.T) {
	base := "analysis of the workflow"
	prev := CountTokens("")
	for i := 1; i <= len(base); i++ {
		cur := CountTokens(base[:i])
		if cur < prev {
			t.Fatalf("CountTokens(%q) = %d < previous %d", base[:i], cur, prev)
		}
		prev = cur
	}
}
