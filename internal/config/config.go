// Package config provides YAML-based configuration for fitcoach.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so container deployments can override
// any file setting.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. FITCOACH_CONFIG environment variable
//  3. ~/.fitcoach/config.yaml
//  4. ./fitcoach.yaml
//
// A .env file in the working directory is read first and never overrides
// variables that are already set. If no file is found the system runs
// entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Models configures the completion backend of each model family.
	Models ModelsConfig `yaml:"models"`

	// Retrieval configures the corpus and the relevance threshold.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Embedding configures the embedding provider for retrieval.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the optional Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Cloud holds credentials shared by the hosted backends.
	Cloud CloudConfig `yaml:"cloud"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Journal configures exchange and feedback persistence.
	Journal JournalConfig `yaml:"journal"`

	// Media configures video lookup and audio transcription.
	Media MediaConfig `yaml:"media"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelsConfig holds per-family completion backend settings.
type ModelsConfig struct {
	// Default is the family used when a request names none.
	Default string `yaml:"default"`
	// DistilGPT2 configures the local_distilgpt2 family.
	DistilGPT2 FamilyConfig `yaml:"distilgpt2"`
	// PlayPart configures the playpart_trainer family.
	PlayPart FamilyConfig `yaml:"playpart"`
}

// FamilyConfig holds the backend settings of one model family.
type FamilyConfig struct {
	// Backend is tgi, ollama, openai, azure, gemini, or ark.
	Backend string `yaml:"backend"`
	// Endpoint is the backend base URL.
	Endpoint string `yaml:"endpoint"`
	// Model is the model name, repository, or deployment.
	Model string `yaml:"model"`
	// APIKey authenticates against hosted backends. Prefer the env var.
	APIKey string `yaml:"api_key"`
	// ContextDocs overrides the number of context documents in the prompt.
	ContextDocs int `yaml:"context_docs"`
}

// RetrievalConfig holds corpus and selection settings.
type RetrievalConfig struct {
	// Threshold is the minimum relevance score of a context document. An
	// explicit 0 disables filtering; omitted keeps the built-in default.
	Threshold *float32 `yaml:"threshold"`
	// CorpusPath loads the corpus from a YAML file instead of the built-in one.
	CorpusPath string `yaml:"corpus_path"`
}

// EmbeddingConfig holds embedding provider settings for retrieval.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (tfidf, ollama, openai, azure, none).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// CacheSize is the number of cached query embeddings.
	CacheSize int `yaml:"cache_size"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Empty keeps vectors in memory.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// CloudConfig holds provider-wide credentials.
type CloudConfig struct {
	// OpenAIAPIKey is used by openai embeddings and Whisper. Prefer env var OPENAI_API_KEY.
	OpenAIAPIKey string `yaml:"openai_api_key"`
	// AzureAPIKey is the Azure OpenAI key. Prefer env var AZURE_OPENAI_API_KEY.
	AzureAPIKey string `yaml:"azure_api_key"`
	// AzureEndpoint is the Azure OpenAI resource endpoint.
	AzureEndpoint string `yaml:"azure_endpoint"`
	// AzureAPIVersion is the Azure OpenAI API version.
	AzureAPIVersion string `yaml:"azure_api_version"`
	// GoogleAPIKey is the Gemini key. Prefer env var GOOGLE_API_KEY.
	GoogleAPIKey string `yaml:"google_api_key"`
	// ArkAPIKey is the Volcengine Ark key. Prefer env var ARK_API_KEY.
	ArkAPIKey string `yaml:"ark_api_key"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var FITCOACH_API_KEY.
	APIKey string `yaml:"api_key"`
	// ChatTimeout bounds one answer pipeline run (Go duration, e.g. "60s").
	ChatTimeout string `yaml:"chat_timeout"`
	// RateLimit is the sustained per-IP request rate.
	RateLimit float32 `yaml:"rate_limit"`
	// RateBurst is the per-IP burst size.
	RateBurst int `yaml:"rate_burst"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// JournalConfig holds persistence settings.
type JournalConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// MediaConfig holds video lookup and transcription settings.
type MediaConfig struct {
	// YouTubeAPIKey enables GET /api/videos. Prefer env var YOUTUBE_API_KEY.
	YouTubeAPIKey string `yaml:"youtube_api_key"`
	// WhisperModel overrides the transcription model.
	WhisperModel string `yaml:"whisper_model"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"DEFAULT_MODEL", func(c *Config) string { return c.Models.Default }},
	{"DISTILGPT2_BACKEND", func(c *Config) string { return c.Models.DistilGPT2.Backend }},
	{"DISTILGPT2_ENDPOINT", func(c *Config) string { return c.Models.DistilGPT2.Endpoint }},
	{"DISTILGPT2_MODEL", func(c *Config) string { return c.Models.DistilGPT2.Model }},
	{"DISTILGPT2_API_KEY", func(c *Config) string { return c.Models.DistilGPT2.APIKey }},
	{"DISTILGPT2_CONTEXT_DOCS", func(c *Config) string { return intStr(c.Models.DistilGPT2.ContextDocs) }},
	{"PLAYPART_BACKEND", func(c *Config) string { return c.Models.PlayPart.Backend }},
	{"PLAYPART_ENDPOINT", func(c *Config) string { return c.Models.PlayPart.Endpoint }},
	{"PLAYPART_MODEL", func(c *Config) string { return c.Models.PlayPart.Model }},
	{"PLAYPART_API_KEY", func(c *Config) string { return c.Models.PlayPart.APIKey }},
	{"PLAYPART_CONTEXT_DOCS", func(c *Config) string { return intStr(c.Models.PlayPart.ContextDocs) }},
	{"RAG_THRESHOLD", func(c *Config) string { return optFloat32Str(c.Retrieval.Threshold) }},
	{"CORPUS_PATH", func(c *Config) string { return c.Retrieval.CorpusPath }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_CACHE_SIZE", func(c *Config) string { return intStr(c.Embedding.CacheSize) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Cloud.OpenAIAPIKey }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Cloud.AzureAPIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Cloud.AzureEndpoint }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Cloud.AzureAPIVersion }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Cloud.GoogleAPIKey }},
	{"ARK_API_KEY", func(c *Config) string { return c.Cloud.ArkAPIKey }},
	{"FITCOACH_HOST", func(c *Config) string { return c.Server.Host }},
	{"FITCOACH_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"FITCOACH_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"CHAT_TIMEOUT", func(c *Config) string { return c.Server.ChatTimeout }},
	{"RATE_LIMIT", func(c *Config) string { return float32Str(c.Server.RateLimit) }},
	{"RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"FITCOACH_DB", func(c *Config) string { return c.Journal.DBPath }},
	{"YOUTUBE_API_KEY", func(c *Config) string { return c.Media.YouTubeAPIKey }},
	{"WHISPER_MODEL", func(c *Config) string { return c.Media.WhisperModel }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// LoadDotEnv reads KEY=VALUE pairs from path (default: ".env") into the
// environment. Variables that are already set are left untouched. A missing
// file is not an error.
func LoadDotEnv(path string, log *slog.Logger) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	log.Debug("config: loaded .env file", slog.String("path", path))
	return nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("FITCOACH_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".fitcoach", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("fitcoach.yaml"); err == nil {
		return "fitcoach.yaml"
	}

	return ""
}

// String returns the value of key, or fallback when it is unset or empty.
func String(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Int parses key as an integer, returning fallback when it is unset.
func Int(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

// Float32 parses key as a float, returning fallback when it is unset.
func Float32(key string, fallback float32) (float32, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a number, got %q", key, v)
	}
	return float32(f), nil
}

// OptionalFloat32 parses key as a float32, returning nil when it is unset so
// callers can tell an explicit 0 from no value.
func OptionalFloat32(key string) (*float32, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return nil, nil
	}
	f, err := Float32(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Duration parses key as a Go duration, returning fallback when it is unset.
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration like 60s, got %q", key, v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %q", key, v)
	}
	return d, nil
}

// Bool parses key as a boolean; unset means false.
func Bool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s must be true or false, got %q", key, v)
	}
	return b, nil
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// optFloat32Str converts an optional float32, keeping an explicit 0.
func optFloat32Str(v *float32) string {
	switch {
	case v == nil:
		return ""
	case *v == 0:
		return "0"
	default:
		return float32Str(*v)
	}
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
