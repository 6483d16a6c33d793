package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/fitcoach-go/internal/budget"
	"github.com/54b3r/fitcoach-go/internal/logging"
	"github.com/54b3r/fitcoach-go/internal/profile"
)

// ChatCompleter adapts an eino chat model to Completer. The prompt is sent as
// a single user message. Sampling fields without a chat-API equivalent
// (top_k, repetition and n-gram penalties) are not forwarded.
type ChatCompleter struct {
	// model is the underlying eino chat model.
	model model.BaseChatModel
	// name labels the run in callback handlers (e.g. Langfuse traces).
	name string
}

// NewChatCompleter wraps m. name identifies the model family in traces.
func NewChatCompleter(m model.BaseChatModel, name string) *ChatCompleter {
	return &ChatCompleter{model: m, name: name}
}

// Complete runs one chat turn and returns the assistant's content.
func (c *ChatCompleter) Complete(ctx context.Context, prompt string, s profile.Sampling) (string, error) {
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      c.name,
		Type:      "FitcoachCompletion",
		Component: components.ComponentOfChatModel,
	})

	opts := []model.Option{model.WithMaxTokens(s.MaxNewTokens)}
	if s.DoSample {
		opts = append(opts, model.WithTemperature(s.Temperature), model.WithTopP(s.TopP))
	} else {
		opts = append(opts, model.WithTemperature(0))
	}

	msgs := []*schema.Message{schema.UserMessage(prompt)}
	logging.FromContext(ctx).Debug("provider: chat completion",
		slog.String("model", c.name),
		slog.Int("estimated_prompt_tokens", budget.EstimateMessages(msgs)),
		slog.Int("max_new_tokens", s.MaxNewTokens),
	)

	msg, err := c.model.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrGeneration, c.name, err)
	}
	if msg == nil {
		return "", fmt.Errorf("%w: %s: nil message", ErrGeneration, c.name)
	}
	return msg.Content, nil
}
