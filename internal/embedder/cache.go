package embedder

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/54b3r/fitcoach-go/internal/rag"
)

// DefaultCacheSize is the number of embeddings kept by Cached when no size is
// configured.
const DefaultCacheSize = 512

// Cached is a rag.Embedder decorator that keeps recent embeddings in an LRU
// cache. Repeated questions skip the backend entirely. It forwards Fit to the
// wrapped embedder and purges the cache, since a refit changes the vector
// space.
type Cached struct {
	// inner is the wrapped embedder.
	inner rag.Embedder
	// cache maps text to its embedding.
	cache *lru.Cache[string, []float32]
	// lookups counts cache results by label "result" (hit/miss). May be nil.
	lookups *prometheus.CounterVec
}

// NewCacheMetrics registers the cache lookup counter on reg.
func NewCacheMetrics(reg prometheus.Registerer) *prometheus.CounterVec {
	return promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitcoach",
		Subsystem: "embedding_cache",
		Name:      "lookups_total",
		Help:      "Embedding cache lookups by result (hit, miss).",
	}, []string{"result"})
}

// NewCached wraps inner with an LRU cache of the given size. lookups may be nil.
func NewCached(inner rag.Embedder, size int, lookups *prometheus.CounterVec) (*Cached, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder: cache: inner embedder must not be nil")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedder: cache: %w", err)
	}
	return &Cached{inner: inner, cache: c, lookups: lookups}, nil
}

// Embed returns cached embeddings where available and sends only the misses
// to the wrapped embedder, in a single batch.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missText []string
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			c.count("hit")
			out[i] = slices.Clone(v)
			continue
		}
		c.count("miss")
		missIdx = append(missIdx, i)
		missText = append(missText, t)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missText)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missText) {
		return nil, fmt.Errorf("embedder: cache: expected %d embeddings, got %d", len(missText), len(vecs))
	}
	for j, i := range missIdx {
		c.cache.Add(missText[j], slices.Clone(vecs[j]))
		out[i] = vecs[j]
	}
	return out, nil
}

// Fit refits the wrapped embedder when it supports fitting, and always purges
// the cache.
func (c *Cached) Fit(corpus []string) error {
	c.cache.Purge()
	if f, ok := c.inner.(rag.Fitter); ok {
		return f.Fit(corpus)
	}
	return nil
}

// Len returns the number of cached embeddings.
func (c *Cached) Len() int { return c.cache.Len() }

func (c *Cached) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}
