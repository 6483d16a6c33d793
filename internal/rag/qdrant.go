package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: fitcoach).
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. Points are
// keyed by the numeric store position of their document.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg QdrantConfig
}

// NewQdrantStore creates a QdrantStore. The collection is (re)created by Reset,
// so no network call is made here.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "fitcoach"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Collection returns the name of the backing collection.
func (s *QdrantStore) Collection() string { return s.cfg.Collection }

// Reset drops the collection if present and recreates it for vectors of the
// given dimension with cosine distance.
func (s *QdrantStore) Reset(ctx context.Context, dims int) error {
	if dims <= 0 {
		return fmt.Errorf("qdrant: dimension must be > 0, got %d", dims)
	}
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return fmt.Errorf("qdrant: failed to drop collection %q: %w", s.cfg.Collection, err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}
	return nil
}

// Upsert stores vectors[i] as point i.
func (s *QdrantStore) Upsert(ctx context.Context, vectors [][]float32) error {
	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for i, v := range vectors {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(v...),
			Payload: qdrant.NewValueMap(map[string]any{"position": i}),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
// Results are re-sorted so equal scores keep store order.
func (s *QdrantStore) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			Position: int(r.GetId().GetNum()),
			Score:    r.GetScore(),
		})
	}
	sortHits(hits)
	return hits, nil
}

// Ping checks that the Qdrant server is reachable.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Name identifies the store in readiness reports.
func (s *QdrantStore) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
