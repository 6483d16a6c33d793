package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/54b3r/fitcoach-go/internal/corpus"
)

// Match is one ranked search result. It only lives for the duration of the
// request that produced it.
type Match struct {
	// Doc is the matched document.
	Doc corpus.Document

	// Score is the cosine similarity in [-1, 1]. Meaningless when Scored is false.
	Score float32

	// Scored is false for degraded, store-order results.
	Scored bool
}

// IndexConfig holds the dependencies of an Index.
type IndexConfig struct {
	// Corpus is the document collection to index. Required.
	Corpus *corpus.Store

	// Embedder produces vectors. A nil Embedder leaves the index permanently
	// unavailable, which is a supported mode.
	Embedder Embedder

	// Store holds the vectors (default: a new MemoryStore).
	Store VectorStore

	// Logger receives build and degraded-search events (default: slog.Default()).
	Logger *slog.Logger
}

// Index ranks corpus documents against free-text queries. Until Build
// succeeds, Search returns unranked documents in store order.
type Index struct {
	// docs is the corpus being indexed.
	docs *corpus.Store
	// embedder is nil when semantic search is disabled.
	embedder Embedder
	// store holds the normalised document vectors.
	store VectorStore
	// log is the component logger.
	log *slog.Logger

	// mu guards built. Build takes the write lock for its whole duration so
	// searches never observe a half-populated store.
	mu sync.RWMutex
	// built is true once Build has succeeded.
	built bool
}

// NewIndex returns an unbuilt Index.
func NewIndex(cfg IndexConfig) (*Index, error) {
	if cfg.Corpus == nil {
		return nil, fmt.Errorf("rag: corpus must not be nil")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Index{
		docs:     cfg.Corpus,
		embedder: cfg.Embedder,
		store:    cfg.Store,
		log:      cfg.Logger,
	}, nil
}

// Build embeds every document as title + " " + content, L2-normalises the
// vectors, and loads them into the vector store. Any failure leaves the index
// unavailable and returns an error wrapping ErrUnavailable. Building twice
// yields the same index.
func (x *Index) Build(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.built = false

	if x.embedder == nil {
		return fmt.Errorf("%w: no embedder configured", ErrUnavailable)
	}

	docs := x.docs.All()
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text()
	}

	if f, ok := x.embedder.(Fitter); ok {
		if err := f.Fit(texts); err != nil {
			return fmt.Errorf("%w: fit embedder: %v", ErrUnavailable, err)
		}
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embed corpus: %v", ErrUnavailable, err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ErrUnavailable, len(docs), len(vectors))
	}
	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims || dims == 0 {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d", ErrUnavailable, i, len(v), dims)
		}
		vectors[i] = normalize(v)
	}

	if err := x.store.Reset(ctx, dims); err != nil {
		return fmt.Errorf("%w: reset store: %v", ErrUnavailable, err)
	}
	if err := x.store.Upsert(ctx, vectors); err != nil {
		return fmt.Errorf("%w: load store: %v", ErrUnavailable, err)
	}

	x.built = true
	x.log.Info("rag: index built", slog.Int("documents", len(docs)), slog.Int("dimensions", dims))
	return nil
}

// Available reports whether semantic search is active.
func (x *Index) Available() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}

// Search returns the top min(k, corpus size) documents for query, best first,
// with ties in store order. When the index is unavailable, or the query
// cannot be embedded, it returns the first k documents unscored.
func (x *Index) Search(ctx context.Context, query string, k int) []Match {
	k = max(0, min(k, x.docs.Len()))
	if k == 0 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.built {
		return x.unranked(k)
	}

	matches, err := x.rank(ctx, query, k)
	if err != nil {
		x.log.Warn("rag: search degraded to store order", slog.String("error", err.Error()))
		return x.unranked(k)
	}
	return matches
}

// rank runs the scored search. It asks the store for every document so the
// stable tie-break is applied over the full ranking before cutting to k.
func (x *Index) rank(ctx context.Context, query string, k int) ([]Match, error) {
	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, errors.New("embed query: empty result")
	}
	q := normalize(vecs[0])

	n := x.docs.Len()
	var hits []Hit
	if isZero(q) {
		// Nothing in the query is known to the embedding space; every
		// document scores zero.
		hits = make([]Hit, n)
		for i := range hits {
			hits[i] = Hit{Position: i}
		}
	} else {
		hits, err = x.store.Search(ctx, q, n)
		if err != nil {
			return nil, err
		}
		sortHits(hits)
	}

	out := make([]Match, 0, k)
	for _, h := range hits {
		if len(out) == k {
			break
		}
		d, ok := x.docs.At(h.Position)
		if !ok {
			return nil, fmt.Errorf("store returned unknown position %d", h.Position)
		}
		out = append(out, Match{Doc: d, Score: h.Score, Scored: true})
	}
	return out, nil
}

func (x *Index) unranked(k int) []Match {
	docs := x.docs.First(k)
	out := make([]Match, len(docs))
	for i, d := range docs {
		out[i] = Match{Doc: d}
	}
	return out
}

// normalize returns a copy of v scaled to unit L2 norm. The zero vector stays
// zero.
func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, f := range v {
		out[i] = float32(float64(f) * inv)
	}
	return out
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
