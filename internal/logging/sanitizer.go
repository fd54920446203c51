package logging

import "regexp"

const redactedText = "[REDACTED]"

// Sanitizer strips provider credentials and other secrets from text
// before it is logged. Requests to hosted providers carry API keys in
// headers, and those headers occasionally surface in error messages,
// so every log record is filtered through these patterns.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

// NewSanitizer returns a sanitizer loaded with patterns for the
// credentials this system handles plus a set of generic catch-alls.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{patterns: compile(defaultPatterns)}
}

var defaultPatterns = []string{
	// Anthropic keys. Checked before the OpenAI pattern because the
	// sk- prefix would otherwise swallow the sk-ant- form partially.
	`sk-ant-[a-zA-Z0-9-]{40,}`,
	// OpenAI keys
	`sk-[A-Za-z0-9]{20,}`,
	// Google AI keys
	`AIza[a-zA-Z0-9_-]{35}`,
	// GitHub tokens (PAT, OAuth, app installation)
	`gh[opus]_[A-Za-z0-9]{36}`,
	// AWS access key IDs
	`AKIA[0-9A-Z]{16}`,
	// Authorization headers
	`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
	`(?i)x-api-key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	// Generic key/secret/token/password assignments
	`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	`(?i)token["'\s:=]+[a-zA-Z0-9._-]{20,}`,
	`(?i)password["'\s:=]+[^\s"']{8,}`,
}

func compile(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize replaces every credential match in input with a redaction
// marker.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, redactedText)
	}
	return result
}

// AddPattern registers an extra redaction pattern. It returns an error
// if the pattern does not compile.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}
