// Package prompt renders the single completion prompt sent to a model family
// from the user's question and the selected context documents.
package prompt

import (
	"fmt"
	"strings"

	"github.com/54b3r/fitcoach-go/internal/budget"
	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/profile"
)

// Answer markers that close each template. The post-processor strips the
// echoed prompt up to and including these.
const (
	CoachAnswerMarker   = "Réponse:"
	TrainerAnswerMarker = "Answer:"
)

const coachPreamble = "[COACH] En tant que coach sportif français certifié, voici les informations pertinentes :"

// Build renders the prompt for p. At most p.ContextDocs documents are used,
// each body truncated to p.ContextChars runes. When the prompt exceeds
// p.MaxPromptChars runes, context documents are dropped from the least
// relevant up, then the question is shortened, so the answer marker always
// closes the prompt.
func Build(p profile.Profile, question string, docs []corpus.Document) string {
	docs = docs[:min(len(docs), max(p.ContextDocs, 0))]

	render := func(q string, docs []corpus.Document) string {
		switch p.Template {
		case profile.TemplateCoachFR:
			return coachFR(q, docs, p.ContextChars)
		case profile.TemplateTrainerEN:
			return trainerEN(q, docs, p.ContextChars)
		default:
			panic(fmt.Sprintf("prompt: unknown template %d", p.Template))
		}
	}

	for n := len(docs); n >= 0; n-- {
		if out := render(question, docs[:n]); budget.Len(out) <= p.MaxPromptChars {
			return out
		}
	}

	over := budget.Len(render(question, nil)) - p.MaxPromptChars
	q := budget.Truncate(question, budget.Len(question)-over)
	// The template alone overflows only for a cap below its fixed text.
	return budget.Truncate(render(q, nil), p.MaxPromptChars)
}

// coachFR renders the French coach template with a bulleted context block.
func coachFR(question string, docs []corpus.Document, chars int) string {
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("- %s: %s...", d.Title, budget.Truncate(d.Content, chars))
	}
	return coachPreamble + "\n\n" + strings.Join(lines, "\n") +
		"\n\nQuestion: " + question + "\n\n" + CoachAnswerMarker + " "
}

// trainerEN renders the terse English template. Only the best document is
// used; without one the prompt is just the question.
func trainerEN(question string, docs []corpus.Document, chars int) string {
	if len(docs) == 0 {
		return question + "\n" + TrainerAnswerMarker
	}
	ctx := fmt.Sprintf("%s: %s...", docs[0].Title, budget.Truncate(docs[0].Content, chars))
	return ctx + "\n\n" + question + "\n" + TrainerAnswerMarker
}
