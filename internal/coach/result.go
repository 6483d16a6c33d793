package coach

import (
	"time"

	"github.com/54b3r/fitcoach-go/internal/fallback"
	"github.com/54b3r/fitcoach-go/internal/profile"
)

// Source tells whether an answer came from the model or the fallback path.
type Source string

const (
	// SourceModel marks an accepted model generation.
	SourceModel Source = "model"
	// SourceFallback marks a canned or document-summary answer.
	SourceFallback Source = "fallback"
)

// Confidence is a coarse quality hint shown to the user.
type Confidence string

const (
	// ConfidenceHigh is reported for model answers grounded in context.
	ConfidenceHigh Confidence = "high"
	// ConfidenceMedium is reported for everything else.
	ConfidenceMedium Confidence = "medium"
)

// Result is the outcome of one Answer call.
type Result struct {
	// Text is the final answer shown to the user.
	Text string
	// Source is model or fallback.
	Source Source
	// ContextUsed is true when at least one document was selected.
	ContextUsed bool
	// Confidence is high only for model answers with context.
	Confidence Confidence
	// Latency is the wall-clock time spent in Answer.
	Latency time.Duration
	// Model is the family that served (or should have served) the request.
	Model profile.Family
	// ModelName is the display name, prefixed with "Fallback " on the
	// fallback path.
	ModelName string
	// Sources lists the titles of the selected documents. On the fallback
	// path with no documents it holds the basic-guidance label.
	Sources []string
	// RAGEnabled reports whether semantic search was available.
	RAGEnabled bool
	// FallbackReason is set when Source is SourceFallback.
	FallbackReason fallback.Reason
}
