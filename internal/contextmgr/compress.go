package contextmgr

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/hugo-lorenzo-mato/cascade-ai/internal/core"
)

// Compress reduces content toward targetChars using the strategy selected
// by the package type. The result may still exceed the target; callers
// re-measure and hard-truncate if needed.
func Compress(typ core.ContextType, content string, targetChars int) string {
	switch typ {
	case core.ContextTypeStrategic:
		return compressStrategic(content, targetChars)
	case core.ContextTypeTechnical:
		return compressTechnical(content, targetChars)
	default:
		return compressDefault(content, targetChars)
	}
}

// decisionMarkers signal sentences that carry decisions or conclusions.
var decisionMarkers = []string{
	"decision", "decided", "conclusion", "conclude", "therefore",
	"must", "should", "chose", "chosen", "recommend", "because",
	"result", "risk", "agreed", "reject",
}

// compressStrategic keeps decision and conclusion sentences, dropping
// supporting prose first.
func compressStrategic(content string, targetChars int) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return content
	}
	scores := scoreSentences(sentences)
	for i, s := range sentences {
		lower := strings.ToLower(s)
		for _, marker := range decisionMarkers {
			if strings.Contains(lower, marker) {
				scores[i] += 1.0
				break
			}
		}
	}
	return joinTop(sentences, scores, targetChars)
}

// compressTechnical works on lines instead of sentences: code, commands,
// and structured data outrank narrative prose.
func compressTechnical(content string, targetChars int) string {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return content
	}

	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(lines))
	inFence := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			ranked[i] = scored{i, 2.0}
			continue
		}
		score := 0.0
		if inFence {
			score = 2.0
		} else if looksLikeCode(line) {
			score = 1.5
		} else if strings.TrimSpace(line) == "" {
			score = 0.1
		} else {
			// Narrative prose, dropped first; earlier lines slightly
			// preferred.
			score = 0.5 + 0.2/(float64(i)+1.0)
		}
		ranked[i] = scored{i, score}
	}

	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	kept := make(map[int]bool)
	used := 0
	for _, r := range ranked {
		cost := len(lines[r.index]) + 1
		if used+cost > targetChars {
			continue
		}
		kept[r.index] = true
		used += cost
	}
	if len(kept) == 0 {
		kept[ranked[0].index] = true
	}

	var out []string
	for i, line := range lines {
		if kept[i] {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// compressDefault is generic extractive summarization: sentences are
// scored by position, length, and inverse word frequency, then the best
// are kept in original order.
func compressDefault(content string, targetChars int) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return content
	}
	return joinTop(sentences, scoreSentences(sentences), targetChars)
}

// looksLikeCode heuristically classifies a line as code, a command, or
// structured data.
func looksLikeCode(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
		return true
	}
	if strings.HasPrefix(trimmed, "$ ") || strings.HasPrefix(trimmed, "# ") && strings.Contains(trimmed, "--") {
		return true
	}
	symbols := 0
	for _, r := range trimmed {
		switch r {
		case '{', '}', '(', ')', ';', '=', '<', '>', '|', '`', '/', ':':
			symbols++
		}
	}
	return float64(symbols)/float64(len(trimmed)) > 0.08
}

// splitSentences breaks text on sentence boundaries, keeping fragments
// longer than a minimum so abbreviations don't shred the text.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if len(sentence) > 10 {
				sentences = append(sentences, sentence)
				current.Reset()
			}
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// scoreSentences assigns importance scores: position bonus, medium-length
// preference, and inverse word frequency.
func scoreSentences(sentences []string) []float64 {
	freq := wordFrequency(sentences)
	scores := make([]float64, len(sentences))

	for i, sentence := range sentences {
		score := 0.3 / (float64(i) + 1.0)

		words := strings.Fields(sentence)
		lengthScore := math.Min(float64(len(words))/20.0, 1.0)
		if len(words) > 20 {
			lengthScore = math.Max(1.0-(float64(len(words))-20.0)/50.0, 0.1)
		}
		score += lengthScore * 0.4

		freqScore := 0.0
		for _, word := range words {
			word = normalizeWord(word)
			if f, ok := freq[word]; ok && f > 1 {
				freqScore += 1.0 / float64(f)
			}
		}
		if len(words) > 0 {
			freqScore /= float64(len(words))
		}
		score += freqScore * 0.3

		scores[i] = score
	}
	return scores
}

func wordFrequency(sentences []string) map[string]int {
	freq := make(map[string]int)
	for _, sentence := range sentences {
		for _, word := range strings.Fields(sentence) {
			word = normalizeWord(word)
			if len(word) > 2 {
				freq[word]++
			}
		}
	}
	return freq
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

// joinTop selects the highest-scoring sentences that fit targetChars and
// rejoins them in original order.
func joinTop(sentences []string, scores []float64, targetChars int) string {
	type ranked struct {
		index int
		score float64
	}
	order := make([]ranked, len(sentences))
	for i, score := range scores {
		order[i] = ranked{i, score}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].score > order[b].score })

	kept := make(map[int]bool)
	used := 0
	for _, r := range order {
		cost := len(sentences[r.index]) + 1
		if used+cost > targetChars {
			continue
		}
		kept[r.index] = true
		used += cost
	}
	// Never return empty output; keep the single best sentence even when
	// it exceeds the target (the caller truncates).
	if len(kept) == 0 {
		kept[order[0].index] = true
	}

	var out []string
	for i, s := range sentences {
		if kept[i] {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
