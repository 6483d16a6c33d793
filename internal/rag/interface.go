// Package rag implements the retrieval half of the coach pipeline: an
// embedding index over the fixed corpus and the context selector that decides
// which ranked documents enter the prompt. Vector storage and embedding are
// behind interfaces so the index never depends on a specific backend.
package rag

import (
	"context"
	"errors"
)

// ErrUnavailable reports that semantic search cannot be used. Callers degrade
// to unranked store-order results instead of failing the request.
var ErrUnavailable = errors.New("rag: retrieval unavailable")

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fitter is implemented by embedders that derive their vector space from the
// corpus itself (e.g. TF-IDF). Index.Build calls Fit before embedding documents.
type Fitter interface {
	// Fit learns the embedding space from the given corpus texts.
	Fit(corpus []string) error
}

// Hit is one raw vector-store result.
type Hit struct {
	// Position is the store-order index of the matched document.
	Position int

	// Score is the inner product between the query and the document vector.
	Score float32
}

// VectorStore is the interface for persisting and searching document
// embeddings. Vectors are keyed by their document's store position.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Reset drops any stored vectors and prepares the store for vectors of
	// the given dimension.
	Reset(ctx context.Context, dims int) error

	// Upsert stores vectors[i] under position i.
	Upsert(ctx context.Context, vectors [][]float32) error

	// Search returns up to topK hits for the query vector, best first.
	Search(ctx context.Context, query []float32, topK int) ([]Hit, error)

	// Close releases any resources held by the store.
	Close() error
}
