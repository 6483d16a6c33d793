// Package fallback produces deterministic canned answers when retrieval or
// generation cannot deliver one. It has no I/O and never fails.
package fallback

import (
	"fmt"
	"strings"

	"github.com/54b3r/fitcoach-go/internal/budget"
	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/profile"
)

// Reason is why the pipeline fell back.
type Reason string

const (
	// ReasonUnavailable means the model is not loaded or its breaker is open.
	ReasonUnavailable Reason = "unavailable"
	// ReasonGeneration means the completion call failed.
	ReasonGeneration Reason = "generation"
	// ReasonIncoherent means the output was rejected by the acceptance test.
	ReasonIncoherent Reason = "incoherent"
)

// summaryChars is the body excerpt length of a document summary answer.
const summaryChars = 150

// BasicGuidance is the sources label of a fallback answer built without any
// document.
func BasicGuidance(lang profile.Language) string {
	if lang == profile.English {
		return "Basic guidance"
	}
	return "Conseils de base"
}

// TableFor returns the table used for family f and reason r.
func TableFor(f profile.Family, r Reason) Table {
	switch f {
	case profile.PlayPart:
		if r == ReasonIncoherent {
			return trainerIncoherent
		}
		return trainerUnavailable
	case profile.DistilGPT2:
		return coachAll
	case profile.Unspecified:
		return coachAll
	default:
		return coachAll
	}
}

// Respond picks the answer for question: the first matching keyword of the
// family's table, else a summary of the best document, else the table
// default.
func Respond(question string, f profile.Family, r Reason, docs []corpus.Document) string {
	t := TableFor(f, r)
	if resp, ok := t.Match(question); ok {
		return resp
	}
	if len(docs) > 0 {
		return Summary(docs[0])
	}
	return t.Default
}

// Match returns the response of the first entry whose keyword occurs in
// question, case-insensitively.
func (t Table) Match(question string) (string, bool) {
	q := strings.ToLower(question)
	for _, e := range t.Entries {
		if strings.Contains(q, e.Keyword) {
			return e.Response, true
		}
	}
	return "", false
}

// Summary renders a document as a short answer.
func Summary(d corpus.Document) string {
	return fmt.Sprintf("**%s** : %s...", d.Title, budget.Truncate(d.Content, summaryChars))
}
