package rag

import "github.com/54b3r/fitcoach-go/internal/corpus"

// DefaultThreshold is the minimum similarity a scored match needs to enter
// the prompt.
const DefaultThreshold float32 = 0.2

// Select decides which ranked matches enter the prompt. It takes the first n
// matches and drops scored ones below theta. Unscored (degraded) matches are
// kept without filtering. An empty result is valid.
func Select(matches []Match, n int, theta float32) []corpus.Document {
	n = max(0, min(n, len(matches)))
	out := make([]corpus.Document, 0, n)
	for _, m := range matches[:n] {
		if m.Scored && m.Score < theta {
			continue
		}
		out = append(out, m.Doc)
	}
	return out
}
