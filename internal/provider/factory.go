package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
)

// New constructs the Completer for cfg. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg Config) (Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var build func(context.Context, Config) (model.BaseChatModel, error)
	switch cfg.Backend {
	case BackendTGI:
		return NewTGIClient(TGIConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}), nil
	case BackendOllama:
		build = newOllama
	case BackendOpenAI:
		build = newOpenAI
	case BackendAzure:
		build = newAzure
	case BackendGemini:
		build = newGemini
	case BackendArk:
		build = newArk
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}

	m, err := build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewChatCompleter(m, cfg.Family.String()), nil
}
