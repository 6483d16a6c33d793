// Package postproc turns raw model output into a clean answer or rejects it as
// incoherent. Every function is pure: no I/O, no model, no shared state.
package postproc

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/54b3r/fitcoach-go/internal/budget"
	"github.com/54b3r/fitcoach-go/internal/profile"
)

// Artifacts are the prompt markers stripped from raw output, in order.
var Artifacts = []string{"[COACH]", "Question:", "Réponse:", "Answer:", "Context:", "Q:", "A:"}

// MinAcceptChars is the shortest cleaned text that is not rejected as
// incoherent.
const MinAcceptChars = 10

// firstSentenceMin is the length above which strict cleanup keeps only the
// first sentence.
const firstSentenceMin = 15

var (
	disallowed = regexp.MustCompile(`[^\w\s.,!?()-]`)
	spaces     = regexp.MustCompile(`\s+`)
)

// Process runs the full cleanup for profile p and applies the acceptance
// test. ok is false when the output must be rejected as incoherent.
func Process(raw string, p profile.Profile) (text string, ok bool) {
	text = Clean(raw, p)
	if !Accept(text) {
		return text, false
	}
	text = Terminate(text)
	if budget.Len(text) < p.MinResponseChars {
		return text, false
	}
	return text, true
}

// Clean strips the prompt echo and artifacts, applies strict cleanup for
// profiles that need it, normalises whitespace, and caps the length.
func Clean(raw string, p profile.Profile) string {
	s := StripEcho(strings.TrimSpace(raw), Artifacts)
	if p.StrictCleanup {
		s = CleanStrict(s)
	}
	s = Normalize(s)
	return Cap(s, p.MaxResponseChars)
}

// StripEcho removes echoed prompt text. For each marker in order, if it is
// present the text after its last occurrence is kept, trimmed.
func StripEcho(raw string, markers []string) string {
	s := raw
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.LastIndex(s, m); i >= 0 {
			s = strings.TrimSpace(s[i+len(m):])
		}
	}
	return s
}

// CleanStrict is the extra cleanup for less steerable models: it keeps ASCII
// only, removes symbols, drops consecutive duplicate words, and keeps just
// the first sentence when that sentence is long enough to stand alone.
func CleanStrict(s string) string {
	s = strings.Map(func(r rune) rune {
		if r <= unicode.MaxASCII || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	s = disallowed.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")

	words := strings.Fields(s)
	kept := make([]string, 0, len(words))
	prev := ""
	for _, w := range words {
		if !strings.EqualFold(w, prev) {
			kept = append(kept, w)
		}
		prev = w
	}
	s = strings.Join(kept, " ")

	if parts := strings.Split(s, "."); len(parts) > 1 && len(parts[0]) > firstSentenceMin {
		s = parts[0] + "."
	}
	return strings.TrimSpace(s)
}

// Normalize replaces literal "\n" escape sequences with spaces and collapses
// runs of whitespace.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, `\n`, " ")
	return strings.Join(strings.Fields(s), " ")
}

// Cap bounds s to limit runes. Longer text keeps whole "."-terminated
// sentences while the running length stays under limit; if not even the
// first sentence fits, the text is cut hard.
func Cap(s string, limit int) string {
	if budget.Len(s) <= limit {
		return s
	}
	var b strings.Builder
	for _, sentence := range strings.Split(s, ".") {
		if strings.TrimSpace(sentence) == "" {
			continue
		}
		if budget.Len(b.String())+budget.Len(sentence) >= limit {
			break
		}
		b.WriteString(sentence)
		b.WriteByte('.')
	}
	if b.Len() == 0 {
		return budget.Truncate(s, limit)
	}
	return b.String()
}

// Accept reports whether cleaned text is coherent: at least MinAcceptChars
// runes and at least one letter.
func Accept(s string) bool {
	if budget.Len(s) < MinAcceptChars {
		return false
	}
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

// Terminate appends "." unless s already ends with terminal punctuation.
func Terminate(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}
