package contextmgr

// charsPerToken is the approximation used by the deterministic counter.
// Real tokenizers vary by model; scheduling only needs a consistent,
// monotonic measure within a run.
const charsPerToken = 4

// CountTokens measures text in approximate tokens. The count is
// deterministic and monotonic: appending content never lowers it.
func CountTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// budgetChars converts a token budget to the character ceiling the counter
// permits for it.
func budgetChars(tokens int) int {
	return tokens * charsPerToken
}
