// Package tokencount provides the character-based token estimate used
// throughout the system as a fallback when a model-specific tokenizer is
// unavailable (§4.4, §4.6, §9 Open Question 3). Because this system embeds
// and chunks text across several provider/tokenizer combinations, the
// estimate deliberately stays conservative rather than exact: 1 token ≈ 4
// characters of English prose or code.
package tokencount

// charsPerToken is the conservative character-to-token ratio used for
// estimation. 4 chars/token is standard for English and code.
const charsPerToken = 4

// Estimate returns ceil(len(s)/charsPerToken), never 0 for non-empty input.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n*charsPerToken < len(s) {
		n++
	}
	return n
}
