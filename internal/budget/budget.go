// Package budget bounds the size of text sent to and received from the
// completion backends. Prompt and response caps are expressed in characters
// (runes), so truncation never splits a multi-byte character. Token counts are
// only estimated, with the conservative 1 token ≈ 4 characters heuristic, for
// logging and for sizing backend requests.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

// charsPerToken is the character-to-token ratio used for estimation.
const charsPerToken = 4

// Truncate returns the first n runes of s. It returns s unchanged when it is
// already short enough and "" when n <= 0.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		// Byte length bounds rune count, so s already fits.
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Len returns the length of s in runes.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := Len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}
