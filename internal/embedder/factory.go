// Package embedder provides implementations of the rag.Embedder interface for
// converting text into vectors: an offline TF-IDF vectoriser fitted on the
// corpus, Ollama over plain HTTP, and OpenAI/Azure OpenAI through go-openai.
// Any backend can be wrapped in an LRU cache.
package embedder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/fitcoach-go/internal/rag"
)

// Backend names accepted in EMBEDDING_PROVIDER.
const (
	BackendTFIDF  = "tfidf"
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendAzure  = "azure"
	BackendNone   = "none"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	defaultOllamaHost      = "http://localhost:11434"
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultAzureAPIVersion = "2025-04-01-preview"
)

// Config selects and configures the embedding backend.
type Config struct {
	// Provider is one of tfidf, ollama, openai, azure, none (default: tfidf).
	Provider string
	// Model overrides the backend's default embedding model.
	Model string
	// Dimensions requests a specific vector length where the backend supports it.
	Dimensions int
	// APIKey authenticates against openai/azure.
	APIKey string
	// Endpoint overrides the backend base URL.
	Endpoint string
	// AzureAPIVersion is the Azure OpenAI api-version (azure only).
	AzureAPIVersion string
	// CacheSize is the LRU size; negative disables the cache (default: DefaultCacheSize).
	CacheSize int
}

// ConfigFromEnv resolves Config from the environment:
//
//  1. EMBEDDING_PROVIDER (default: tfidf)
//  2. EMBEDDING_MODEL, EMBEDDING_DIMENSIONS
//  3. EMBEDDING_API_KEY, falling back to OPENAI_API_KEY or AZURE_OPENAI_API_KEY
//  4. EMBEDDING_ENDPOINT, falling back to OLLAMA_HOST or AZURE_OPENAI_ENDPOINT
//  5. EMBEDDING_CACHE_SIZE
func ConfigFromEnv() Config {
	cfg := Config{
		Provider:        strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", BackendTFIDF)),
		Model:           getEnv("EMBEDDING_MODEL"),
		Dimensions:      getEnvInt("EMBEDDING_DIMENSIONS", 0),
		APIKey:          getEnv("EMBEDDING_API_KEY"),
		Endpoint:        getEnv("EMBEDDING_ENDPOINT"),
		AzureAPIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", defaultAzureAPIVersion),
		CacheSize:       getEnvInt("EMBEDDING_CACHE_SIZE", DefaultCacheSize),
	}
	switch cfg.Provider {
	case BackendOllama:
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", defaultOllamaHost)
		}
	case BackendOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("OPENAI_API_KEY")
		}
	case BackendAzure:
		if cfg.APIKey == "" {
			cfg.APIKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
	}
	return cfg
}

// New constructs the configured embedder, wrapped in an LRU cache unless
// CacheSize is negative. It returns (nil, nil) for the "none" backend, which
// disables semantic search. lookups may be nil.
func New(cfg Config, lookups *prometheus.CounterVec) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var inner rag.Embedder
	switch cfg.Provider {
	case "", BackendTFIDF:
		inner = NewTFIDF()
	case BackendOllama:
		inner = NewOllamaEmbedder(&OllamaConfig{
			Host:  orDefault(cfg.Endpoint, defaultOllamaHost),
			Model: orDefault(cfg.Model, defaultOllamaModel),
		})
	case BackendOpenAI:
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    orDefault(cfg.Endpoint, defaultOpenAIBaseURL),
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultOpenAIModel),
			Dimensions: cfg.Dimensions,
		})
	case BackendAzure:
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      orDefault(cfg.Model, defaultOpenAIModel),
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.AzureAPIVersion,
		})
	case BackendNone:
		return nil, nil
	}

	if cfg.CacheSize < 0 {
		return inner, nil
	}
	cached, err := NewCached(inner, cfg.CacheSize, lookups)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

// NewFromEnv is New(ConfigFromEnv(), lookups).
func NewFromEnv(lookups *prometheus.CounterVec) (rag.Embedder, error) {
	return New(ConfigFromEnv(), lookups)
}

// Validate reports configuration errors that would otherwise only surface on
// the first embed call.
func (c Config) Validate() error {
	switch c.Provider {
	case "", BackendTFIDF, BackendOllama, BackendNone:
		return nil
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return nil
	case BackendAzure:
		if c.APIKey == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if c.Endpoint == "" {
			return fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return nil
	default:
		return fmt.Errorf("embedder: unknown backend %q (valid: tfidf, ollama, openai, azure, none)", c.Provider)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
