// Package transcribe turns recorded voice questions into text with the
// OpenAI Whisper API.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// MaxAudioBytes is the largest upload the Whisper API accepts.
const MaxAudioBytes = 25 << 20

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("transcribe: OpenAI API key not configured")

// ErrUnsupportedFormat is returned for file extensions Whisper rejects.
var ErrUnsupportedFormat = errors.New("transcribe: unsupported audio format")

// formats lists the extensions the transcription endpoint accepts.
var formats = map[string]struct{}{
	".flac": {}, ".m4a": {}, ".mp3": {}, ".mp4": {}, ".mpeg": {},
	".mpga": {}, ".oga": {}, ".ogg": {}, ".wav": {}, ".webm": {},
}

// Config holds the settings of a Client.
type Config struct {
	// APIKey authenticates against the OpenAI API.
	APIKey string
	// BaseURL overrides the API root (OpenAI-compatible servers, tests).
	BaseURL string
	// Model is the transcription model (default: whisper-1).
	Model string
	// Language is the ISO-639-1 hint (default: "fr").
	Language string
}

// Client transcribes audio. It is safe for concurrent use.
type Client struct {
	// client is nil when no API key is configured.
	client   *openai.Client
	model    string
	language string
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	c := &Client{model: cfg.Model, language: cfg.Language}
	if c.model == "" {
		c.model = openai.Whisper1
	}
	if c.language == "" {
		c.language = "fr"
	}
	if cfg.APIKey != "" {
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		c.client = openai.NewClientWithConfig(oc)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.client != nil }

// Transcribe returns the trimmed transcript of the audio in r. filename
// carries the format through its extension.
func (c *Client) Transcribe(ctx context.Context, filename string, r io.Reader) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := formats[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: filepath.Base(filename),
		Reader:   r,
		Language: c.language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("transcribe: API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
