// Package corpus holds the fixed collection of exercise and guidance documents
// the coach retrieves from. The collection is loaded once at startup and never
// mutated afterwards, so a *Store is safe to share between goroutines.
package corpus

import (
	"fmt"
	"slices"
	"strings"
)

// Difficulty is the optional skill level of an exercise document.
type Difficulty string

const (
	// DifficultyNone marks documents with no difficulty (nutrition, recovery).
	DifficultyNone Difficulty = ""
	// DifficultyBeginner is suitable for newcomers.
	DifficultyBeginner Difficulty = "beginner"
	// DifficultyIntermediate assumes some training background.
	DifficultyIntermediate Difficulty = "intermediate"
	// DifficultyAdvanced assumes a solid training background.
	DifficultyAdvanced Difficulty = "advanced"
)

// ParseDifficulty converts s to a Difficulty. The empty string is accepted and
// yields DifficultyNone.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyNone, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	default:
		return DifficultyNone, fmt.Errorf("corpus: unknown difficulty %q (valid: beginner, intermediate, advanced)", s)
	}
}

// Document is a single retrievable unit of coaching knowledge.
type Document struct {
	// ID is the stable identifier of the document within the corpus.
	ID int `yaml:"id" json:"id"`

	// Title is the short heading used in prompts and fallback summaries.
	Title string `yaml:"title" json:"title"`

	// Content is the body text embedded for retrieval.
	Content string `yaml:"content" json:"content"`

	// Tags lists the muscle groups an exercise works.
	Tags []string `yaml:"tags,omitempty" json:"muscle_groups,omitempty"`

	// Category groups non-exercise documents (e.g. "nutrition").
	Category string `yaml:"category,omitempty" json:"category,omitempty"`

	// Importance is an editorial weight for non-exercise documents.
	Importance string `yaml:"importance,omitempty" json:"importance,omitempty"`

	// Difficulty is the optional skill level of an exercise.
	Difficulty Difficulty `yaml:"difficulty,omitempty" json:"difficulty,omitempty"`

	// Equipment names the gear an exercise needs ("none" when bodyweight only).
	Equipment string `yaml:"equipment,omitempty" json:"equipment,omitempty"`
}

// Text returns the string fed to the embedding capability for this document.
func (d Document) Text() string {
	return d.Title + " " + d.Content
}

// HasAnyTag reports whether the document carries at least one of tags.
// Comparison is case-insensitive.
func (d Document) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		if slices.ContainsFunc(d.Tags, func(have string) bool { return strings.EqualFold(have, want) }) {
			return true
		}
	}
	return false
}

// clone returns a deep copy so callers can never alias the store's slices.
func (d Document) clone() Document {
	d.Tags = slices.Clone(d.Tags)
	return d
}
