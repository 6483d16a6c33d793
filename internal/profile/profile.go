// Package profile defines the closed set of supported model families and the
// immutable per-family profile: prompt template, truncation limits, and
// sampling parameters. Behaviour is always selected with an exhaustive switch
// over Family so an unknown family can never fall through to a default.
package profile

import (
	"fmt"
	"strings"
)

// Family identifies a supported model family. The zero value means
// "unspecified" and is resolved by callers to the currently selected model.
type Family uint8

const (
	// Unspecified is the zero Family.
	Unspecified Family = iota
	// DistilGPT2 is the locally fine-tuned French coaching model.
	DistilGPT2
	// PlayPart is the English personal-trainer model published on the hub.
	PlayPart
)

// Families lists every supported family in display order.
var Families = []Family{DistilGPT2, PlayPart}

// String returns the wire identifier of the family.
func (f Family) String() string {
	switch f {
	case DistilGPT2:
		return "local_distilgpt2"
	case PlayPart:
		return "playpart_trainer"
	case Unspecified:
		return ""
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// Valid reports whether f is one of the supported families.
func (f Family) Valid() bool {
	switch f {
	case DistilGPT2, PlayPart:
		return true
	case Unspecified:
		return false
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty value decodes to
// Unspecified.
func (f *Family) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*f = Unspecified
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Parse converts a wire identifier into a Family.
func Parse(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local_distilgpt2":
		return DistilGPT2, nil
	case "playpart_trainer":
		return PlayPart, nil
	default:
		return Unspecified, fmt.Errorf("profile: unknown model %q (valid: local_distilgpt2, playpart_trainer)", s)
	}
}

// Template selects how a prompt is rendered.
type Template uint8

const (
	// TemplateCoachFR is the French "[COACH]" template with a bulleted context.
	TemplateCoachFR Template = iota + 1
	// TemplateTrainerEN is the terse English "Answer:" template with one context line.
	TemplateTrainerEN
)

// Language is the language fallback answers are written in.
type Language string

const (
	// French is used by the coach family.
	French Language = "fr"
	// English is used by the trainer family.
	English Language = "en"
)

// Sampling holds the generation-time parameters sent to the completion backend.
type Sampling struct {
	// MaxNewTokens caps the number of generated tokens.
	MaxNewTokens int `json:"max_new_tokens"`
	// Temperature controls randomness.
	Temperature float32 `json:"temperature"`
	// DoSample enables sampling instead of greedy decoding.
	DoSample bool `json:"do_sample"`
	// TopP is the nucleus sampling threshold.
	TopP float32 `json:"top_p"`
	// TopK restricts sampling to the k most likely tokens.
	TopK int `json:"top_k"`
	// RepetitionPenalty penalises already generated tokens.
	RepetitionPenalty float32 `json:"repetition_penalty"`
	// NoRepeatNgramSize bans repeating n-grams of this size. Zero disables it.
	NoRepeatNgramSize int `json:"no_repeat_ngram_size"`
	// PadTokenID overrides the tokenizer's pad token when non-nil.
	PadTokenID *int `json:"pad_token_id,omitempty"`
	// EOSTokenID overrides the tokenizer's end-of-sequence token when non-nil.
	EOSTokenID *int `json:"eos_token_id,omitempty"`
	// EarlyStopping stops beam search as soon as enough candidates finish.
	EarlyStopping bool `json:"early_stopping"`
	// LengthPenalty weights sequence length during beam scoring.
	LengthPenalty float32 `json:"length_penalty"`
}

// Profile is the complete, immutable configuration of one model family.
type Profile struct {
	// Family is the model family this profile describes.
	Family Family
	// Name is the human-readable model name.
	Name string
	// Description is a one-line summary for model listings.
	Description string
	// Source is the local path or hub repository of the weights.
	Source string
	// Local is true when the weights live on this host.
	Local bool
	// Language is the language of the canned fallback answers.
	Language Language
	// Template selects the prompt layout.
	Template Template
	// ContextDocs is the maximum number of documents placed in the prompt.
	ContextDocs int
	// ContextChars is the per-document body truncation length.
	ContextChars int
	// MaxPromptChars caps the whole assembled prompt.
	MaxPromptChars int
	// MaxResponseChars caps the cleaned response.
	MaxResponseChars int
	// MinResponseChars is the shortest accepted final response.
	MinResponseChars int
	// StrictCleanup enables the extra ASCII/duplicate/first-sentence cleanup.
	StrictCleanup bool
	// Sampling holds the generation parameters.
	Sampling Sampling
}

// gpt2EOS is the GPT-2 end-of-text token id, also used as the pad token.
const gpt2EOS = 50256

// Default returns the built-in profile of f. It panics on an invalid family,
// which callers rule out with Family.Valid.
func Default(f Family) Profile {
	switch f {
	case DistilGPT2:
		return Profile{
			Family:           DistilGPT2,
			Name:             "DistilGPT-2 Fine-tuné Local",
			Description:      "DistilGPT-2 fine-tuné sur du coaching sportif en français",
			Source:           "./models/coach-sportif-french",
			Local:            true,
			Language:         French,
			Template:         TemplateCoachFR,
			ContextDocs:      2,
			ContextChars:     80,
			MaxPromptChars:   400,
			MaxResponseChars: 400,
			MinResponseChars: 10,
			Sampling: Sampling{
				MaxNewTokens:      150,
				Temperature:       0.7,
				DoSample:          true,
				TopP:              0.9,
				TopK:              50,
				RepetitionPenalty: 1.1,
				NoRepeatNgramSize: 3,
				LengthPenalty:     1.0,
			},
		}
	case PlayPart:
		eos := gpt2EOS
		return Profile{
			Family:           PlayPart,
			Name:             "PlayPart AI Personal Trainer",
			Description:      "GPT-2 fitness model from the Hugging Face hub",
			Source:           "Lukamac/PlayPart-AI-Personal-Trainer",
			Local:            false,
			Language:         English,
			Template:         TemplateTrainerEN,
			ContextDocs:      1,
			ContextChars:     60,
			MaxPromptChars:   200,
			MaxResponseChars: 200,
			MinResponseChars: 20,
			StrictCleanup:    true,
			Sampling: Sampling{
				MaxNewTokens:      60,
				Temperature:       0.5,
				DoSample:          true,
				TopP:              0.7,
				TopK:              25,
				RepetitionPenalty: 1.4,
				NoRepeatNgramSize: 2,
				PadTokenID:        &eos,
				EOSTokenID:        &eos,
				EarlyStopping:     true,
				LengthPenalty:     1.2,
			},
		}
	case Unspecified:
		panic("profile: no profile for unspecified family")
	default:
		panic(fmt.Sprintf("profile: no profile for %s", f))
	}
}
