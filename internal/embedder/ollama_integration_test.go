//go:build integration

package embedder

import (
	"context"
	"math"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration performs a real HTTP call to a locally running
// Ollama instance to validate the embedder end-to-end.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = defaultOllamaHost
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	texts := []string{
		"Push-ups technique: hands shoulder-width apart, body straight.",
		"Comment faire des pompes correctement ?",
		"Recovery essentials: 7-9 hours sleep nightly.",
	}

	embeddings, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(embeddings) != len(texts) {
		t.Fatalf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			t.Errorf("embedding[%d] is empty", i)
		}
	}

	// The French question should sit closer to the push-up text than to the
	// recovery text.
	push := cosine(embeddings[0], embeddings[1])
	rest := cosine(embeddings[2], embeddings[1])
	t.Logf("model=%s dim=%d cos(push)=%.3f cos(recovery)=%.3f", model, len(embeddings[0]), push, rest)
	if push <= rest {
		t.Errorf("expected push-up text to be nearer the question: %.3f <= %.3f", push, rest)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
