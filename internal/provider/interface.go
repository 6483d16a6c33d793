// Package provider is the text-completion capability behind the coach
// pipeline. Each model family is served by one backend: a Hugging Face
// text-generation-inference server, or any eino chat model (Ollama, OpenAI,
// Azure OpenAI, Gemini, Ark). A Registry tracks which families are loaded and
// guards each one with a circuit breaker.
package provider

import (
	"context"
	"errors"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

// ErrGeneration wraps every failed completion call.
var ErrGeneration = errors.New("provider: generation failed")

// ErrNotLoaded reports that a family has no usable backend, either because it
// was never loaded or because its circuit breaker is open.
var ErrNotLoaded = errors.New("provider: model not loaded")

// Backend enumerates the supported inference backends.
type Backend string

const (
	// BackendTGI selects a Hugging Face text-generation-inference server.
	BackendTGI Backend = "tgi"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API (or any compatible server).
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendArk selects the Volcano Engine Ark runtime.
	BackendArk Backend = "ark"
)

// Completer produces raw text for a prompt. Implementations must be safe to
// call from multiple goroutines. Errors wrap ErrGeneration or ErrNotLoaded.
type Completer interface {
	// Complete returns the generated continuation of prompt, without the
	// prompt itself.
	Complete(ctx context.Context, prompt string, s profile.Sampling) (string, error)
}

// Pinger is implemented by completers that can probe their backend.
type Pinger interface {
	// Ping returns nil when the backend is reachable.
	Ping(ctx context.Context) error
}
