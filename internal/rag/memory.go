package rag

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore implements VectorStore with a flat in-process inner-product
// scan. The corpus is small and fixed, so an exact scan is both fast and
// deterministic.
type MemoryStore struct {
	// mu guards dims and vectors.
	mu sync.RWMutex
	// dims is the expected vector length; zero until Reset is called.
	dims int
	// vectors holds one vector per store position.
	vectors [][]float32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Reset drops all vectors and fixes the dimension for subsequent upserts.
func (m *MemoryStore) Reset(_ context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("rag: memory store: dimension must be > 0, got %d", dims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dims = dims
	m.vectors = nil
	return nil
}

// Upsert replaces the stored vectors with a copy of vectors.
func (m *MemoryStore) Upsert(_ context.Context, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dims == 0 {
		return fmt.Errorf("rag: memory store: upsert before reset")
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != m.dims {
			return fmt.Errorf("rag: memory store: vector %d has dimension %d, want %d", i, len(v), m.dims)
		}
		stored[i] = slices.Clone(v)
	}
	m.vectors = stored
	return nil
}

// Search scores every stored vector and returns the best topK. Equal scores
// keep store order.
func (m *MemoryStore) Search(_ context.Context, query []float32, topK int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(query) != m.dims {
		return nil, fmt.Errorf("rag: memory store: query has dimension %d, want %d", len(query), m.dims)
	}
	hits := make([]Hit, len(m.vectors))
	for i, v := range m.vectors {
		hits[i] = Hit{Position: i, Score: dot(query, v)}
	}
	sortHits(hits)
	return hits[:min(max(topK, 0), len(hits))], nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// sortHits orders hits by descending score, breaking ties by position.
func sortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
