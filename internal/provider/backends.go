package provider

import (
	"context"
	"fmt"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// newOllama constructs a chat model backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	baseURL := cfg.Endpoint
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	v, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: ollama: %w", err)
	}
	return v, nil
}

// newOpenAI constructs a chat model backed by the OpenAI API or an
// OpenAI-compatible server when Endpoint is set.
func newOpenAI(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: openai: %w", err)
	}
	return v, nil
}

// newAzure constructs a chat model backed by Azure OpenAI Service. Model is
// the deployment name.
func newAzure(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:      cfg.Model,
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.Endpoint,
		ByAzure:    true,
		APIVersion: cfg.AzureAPIVersion,
		// Use the deployment name as-is; the default mapper strips dots and
		// colons, which breaks names like "gpt-4.1".
		AzureModelMapperFunc: func(model string) string { return model },
	})
	if err != nil {
		return nil, fmt.Errorf("provider: azure: %w", err)
	}
	return v, nil
}

// newGemini constructs a chat model backed by Google Gemini (AI Studio).
func newGemini(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create Gemini client: %w", err)
	}
	v, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: gemini: %w", err)
	}
	return v, nil
}

// newArk constructs a chat model backed by the Volcano Engine Ark runtime.
func newArk(ctx context.Context, cfg Config) (model.BaseChatModel, error) {
	v, err := einoark.NewChatModel(ctx, &einoark.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("provider: ark: %w", err)
	}
	return v, nil
}
