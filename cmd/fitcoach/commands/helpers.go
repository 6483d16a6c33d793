package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/fitcoach-go/internal/coach"
	"github.com/54b3r/fitcoach-go/internal/config"
	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/embedder"
	"github.com/54b3r/fitcoach-go/internal/profile"
	"github.com/54b3r/fitcoach-go/internal/provider"
	"github.com/54b3r/fitcoach-go/internal/rag"
	"github.com/54b3r/fitcoach-go/internal/store"
)

// service bundles the answer pipeline shared by every command.
type service struct {
	coach    *coach.Service
	index    *rag.Index
	registry *provider.Registry
	corpus   *corpus.Store
	// qdrant is nil when vectors live in memory.
	qdrant *rag.QdrantStore
	// store is the vector store backing index.
	store rag.VectorStore
}

// Close releases the vector store connection.
func (s *service) Close() {
	_ = s.store.Close()
}

// buildService wires corpus, embedder, vector store, index, model registry,
// and coach from the environment. Metrics are registered on reg. Nothing is
// loaded or built yet; callers decide between coach.Init, index.Build, and
// registry.LoadAll.
func buildService(log *slog.Logger, reg prometheus.Registerer) (*service, error) {
	profiles, err := buildProfiles()
	if err != nil {
		return nil, err
	}

	docs, err := loadCorpus(log)
	if err != nil {
		return nil, err
	}

	embCfg := embedder.ConfigFromEnv()
	if err := embedder.Preflight(embCfg, log); err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	emb, err := embedder.New(embCfg, embedder.NewCacheMetrics(reg))
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	log.Info("embedder configured", slog.String("provider", embCfg.Provider))

	vectors, qs, err := buildVectorStore(log)
	if err != nil {
		return nil, err
	}

	index, err := rag.NewIndex(rag.IndexConfig{
		Corpus:   docs,
		Embedder: emb,
		Store:    vectors,
		Logger:   log,
	})
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	registry, err := buildRegistry(log, reg)
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	threshold, err := config.OptionalFloat32("RAG_THRESHOLD")
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}
	defaultModel := profile.Unspecified
	if v := os.Getenv("DEFAULT_MODEL"); v != "" {
		if defaultModel, err = profile.Parse(v); err != nil {
			_ = vectors.Close()
			return nil, fmt.Errorf("DEFAULT_MODEL: %w", err)
		}
	}

	svc, err := coach.New(coach.Config{
		Corpus:       docs,
		Index:        index,
		Profiles:     profiles,
		Models:       registry,
		DefaultModel: defaultModel,
		Threshold:    threshold,
		Logger:       log,
		Metrics:      coach.NewMetrics(reg),
	})
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	return &service{
		coach:    svc,
		index:    index,
		registry: registry,
		corpus:   docs,
		qdrant:   qs,
		store:    vectors,
	}, nil
}

// buildProfiles applies the <P>_CONTEXT_DOCS overrides to the built-in
// profiles.
func buildProfiles() (*profile.Table, error) {
	overrides := make(map[profile.Family]profile.Overrides)
	for _, f := range profile.Families {
		n, err := config.Int(provider.EnvPrefix(f)+"_CONTEXT_DOCS", 0)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			overrides[f] = profile.Overrides{ContextDocs: n}
		}
	}
	return profile.NewTable(overrides)
}

// loadCorpus reads CORPUS_PATH, or returns the built-in corpus when unset.
func loadCorpus(log *slog.Logger) (*corpus.Store, error) {
	path := os.Getenv("CORPUS_PATH")
	if path == "" {
		docs := corpus.Default()
		log.Info("corpus: using built-in documents", slog.Int("documents", docs.Len()))
		return docs, nil
	}
	docs, err := corpus.LoadFile(path)
	if err != nil {
		return nil, err
	}
	log.Info("corpus: loaded", slog.String("path", path), slog.Int("documents", docs.Len()))
	return docs, nil
}

// buildVectorStore returns a Qdrant store when QDRANT_HOST is set and an
// in-memory store otherwise. The second result is nil for the memory store.
func buildVectorStore(log *slog.Logger) (rag.VectorStore, *rag.QdrantStore, error) {
	host := os.Getenv("QDRANT_HOST")
	if host == "" {
		log.Info("rag: using in-memory vector store", slog.String("hint", "set QDRANT_HOST to use Qdrant"))
		return rag.NewMemoryStore(), nil, nil
	}

	port, err := config.Int("QDRANT_PORT", 6334)
	if err != nil {
		return nil, nil, err
	}
	useTLS, err := config.Bool("QDRANT_TLS")
	if err != nil {
		return nil, nil, err
	}

	qs, err := rag.NewQdrantStore(rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: os.Getenv("QDRANT_COLLECTION"),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     useTLS,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("rag: using qdrant vector store",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", qs.Collection()),
	)
	return qs, qs, nil
}

// buildRegistry registers one backend config per family that has any
// <P>_* setting. Unconfigured families stay unloaded and are served by the
// fallback path.
func buildRegistry(log *slog.Logger, reg prometheus.Registerer) (*provider.Registry, error) {
	var cfgs []provider.Config
	for _, f := range profile.Families {
		c := provider.ConfigFromEnv(f)
		if !c.Enabled {
			log.Info("provider: model not configured", slog.String("model", f.String()),
				slog.String("hint", "set "+provider.EnvPrefix(f)+"_BACKEND or "+provider.EnvPrefix(f)+"_ENDPOINT"))
			continue
		}
		cfgs = append(cfgs, c)
	}
	return provider.NewRegistry(provider.RegistryConfig{
		Configs: cfgs,
		Logger:  log,
		Metrics: provider.NewMetrics(reg),
	})
}

// openJournal opens the SQLite journal. FITCOACH_DB overrides the default
// path (~/.fitcoach/journal.db); "disabled" turns persistence off. Failures
// disable the journal rather than stopping the server, so a nil journal is a
// valid result.
func openJournal(log *slog.Logger) *store.SQLiteJournal {
	dbPath := os.Getenv("FITCOACH_DB")
	if dbPath == "disabled" {
		log.Info("journal: disabled via FITCOACH_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("journal: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	j, err := store.Open(dbPath)
	if err != nil {
		log.Warn("journal: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("journal: store opened", slog.String("path", dbPath))
	return j
}

// parseModelFlag resolves a --model value; empty means the current model.
func parseModelFlag(v string) (profile.Family, error) {
	if v == "" {
		return profile.Unspecified, nil
	}
	f, err := profile.Parse(v)
	if err != nil {
		return profile.Unspecified, errors.New("--model: " + err.Error())
	}
	return f, nil
}
