// Package tracing wires optional Langfuse tracing into the eino callback
// system. Every completion issued through provider.ChatCompleter then shows up
// as a trace named after its model family.
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// defaultHost is the self-hosted Langfuse address used when LANGFUSE_HOST is
// unset.
const defaultHost = "http://localhost:3000"

// Config holds the Langfuse credentials.
type Config struct {
	// Host is the Langfuse base URL.
	Host string
	// PublicKey and SecretKey must both be set to enable tracing.
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	cfg := Config{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	return cfg
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup builds the Langfuse callback handler for cfg. The returned flush
// function must be called before process exit so buffered traces are sent.
// When cfg is not enabled, ok is false and the other values are nil.
func Setup(cfg Config) (handler callbacks.Handler, flush func(), ok bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	return handler, flush, true
}

// Install registers the Langfuse handler globally when the environment
// enables it and returns the flush function. It always returns a callable
// flush, a no-op when tracing is disabled.
func Install(log *slog.Logger) func() {
	cfg := ConfigFromEnv()
	handler, flush, ok := Setup(cfg)
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled", slog.String("host", cfg.Host))
	return flush
}
