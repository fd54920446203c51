package contextmgr

import (
	"strings"
	"testing"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

func TestSplitSentences(t *testing.T) {
	text := "The dispatcher retries failed calls. It then falls back to the next provider. Done!"
	sentences := splitSentences(text)
	if len(sentences) != 3 {
		t.Fatalf("got %d sentences, want 3: %v", len(sentences), sentences)
	}
	if sentences[0] != "The dispatcher retries failed calls." {
		t.Errorf("first sentence = %q", sentences[0])
	}
}

func TestSplitSentences_ShortFragmentsMerge(t *testing.T) {
	// "v1.2." style fragments stay attached to the following sentence.
	text := "See v1.2. notes for background on the release schedule."
	sentences := splitSentences(text)
	if len(sentences) != 1 {
		t.Errorf("got %d sentences, want 1: %v", len(sentences), sentences)
	}
}

func TestCompressDefault_FitsTarget(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("This sentence describes one of the many details considered during the run. ")
	}
	content := sb.String()

	target := len(content) / 3
	out := compressDefault(content, target)
	if len(out) > target {
		t.Errorf("compressed length = %d, want <= %d", len(out), target)
	}
	if out == "" {
		t.Error("compression must not produce empty output")
	}
}

func TestCompressDefault_PreservesOriginalOrder(t *testing.T) {
	content := "First finding about the system architecture overall. " +
		"Second finding about the storage layer design choices. " +
		"Third finding about the provider fallback behavior list."
	out := compressDefault(content, len(content))

	first := strings.Index(out, "First")
	third := strings.Index(out, "Third")
	if first >= 0 && third >= 0 && first > third {
		t.Errorf("sentence order not preserved: %q", out)
	}
}

func TestCompressStrategic_KeepsDecisions(t *testing.T) {
	content := "The weather during the offsite was pleasant and sunny for the whole week there. " +
		"Decision: we chose the queue-based design because it bounds memory usage. " +
		"Lunch options near the office were discussed at some length by everybody present. " +
		"Conclusion: the rollout must proceed in two stages to limit the blast radius. " +
		"Someone mentioned their holiday plans during the break between the sessions held."

	target := len(content) / 2
	out := compressStrategic(content, target)

	if !strings.Contains(out, "Decision:") {
		t.Errorf("decision sentence dropped: %q", out)
	}
	if !strings.Contains(out, "Conclusion:") {
		t.Errorf("conclusion sentence dropped: %q", out)
	}
	if len(out) > target {
		t.Errorf("compressed length = %d, want <= %d", len(out), target)
	}
}

func TestCompressTechnical_KeepsCodeOverProse(t *testing.T) {
	content := strings.Join([]string{
		"This long narrative paragraph explains at length what the change is about and why.",
		"func main() { run(); }",
		"Another verbose narrative line padding the description with words and more words here.",
		"$ go test ./...",
		"Yet another line of plain prose that adds very little information to the reader.",
		"result := dispatch(ctx, tasks)",
	}, "\n")

	target := len(content) / 2
	out := compressTechnical(content, target)

	for _, code := range []string{"func main()", "$ go test", "result := dispatch"} {
		if !strings.Contains(out, code) {
			t.Errorf("code line %q dropped: %q", code, out)
		}
	}
	if len(out) > target {
		t.Errorf("compressed length = %d, want <= %d", len(out), target)
	}
}

func TestCompressTechnical_FencedBlocksKept(t *testing.T) {
	content := strings.Join([]string{
		"Narrative introduction that describes the snippet below in unnecessary detail today.",
		"```",
		"SELECT id FROM executions WHERE status = 'running';",
		"```",
		"Closing narrative that repeats what the reader already knows about the query above.",
	}, "\n")

	out := compressTechnical(content, len(content)*2/3)
	if !strings.Contains(out, "SELECT id FROM executions") {
		t.Errorf("fenced content dropped: %q", out)
	}
}

func TestCompress_DispatchesByType(t *testing.T) {
	content := "Decision: keep it. Plain filler sentence with nothing of note inside it at all."
	for _, typ := range []core.ContextType{
		core.ContextTypeStrategic,
		core.ContextTypeTechnical,
		core.ContextTypeDefault,
	} {
		if out := Compress(typ, content, len(content)); out == "" {
			t.Errorf("Compress(%s) produced empty output", typ)
		}
	}
}

func TestLooksLikeCode(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"    indented := true", true},
		{"\ttabbed()", true},
		{"$ make build", true},
		{"x := compute(a, b);", true},
		{"Plain prose about nothing much at all.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := looksLikeCode(tt.line); got != tt.want {
			t.Errorf("looksLikeCode(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
