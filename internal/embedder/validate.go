package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"gpt2",
	"distilgpt",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"deepseek",
	"qwen",
	"playpart",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Preflight validates cfg for startup and logs warnings for settings that are
// legal but probably wrong. It returns the same error New would.
func Preflight(cfg Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.Provider == BackendNone {
		log.Warn("embedder: EMBEDDING_PROVIDER=none, semantic search disabled; answers use unranked context")
	}
	if cfg.Provider == BackendTFIDF && cfg.Model != "" {
		log.Warn("embedder: EMBEDDING_MODEL is ignored by the tfidf backend", slog.String("model", cfg.Model))
	}
	if cfg.Model != "" && looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}
	return nil
}
