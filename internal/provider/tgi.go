package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

// TGIConfig holds the settings for constructing a TGIClient.
type TGIConfig struct {
	// Endpoint is the server base URL (e.g. "http://localhost:8080").
	Endpoint string
	// APIKey is sent as a Bearer token when set (hosted inference endpoints).
	APIKey string
	// Timeout bounds each HTTP call (default: 60s).
	Timeout time.Duration
}

// TGIClient implements Completer against the text-generation-inference
// /generate API. It is safe for concurrent use.
type TGIClient struct {
	// endpoint is the server base URL without a trailing slash.
	endpoint string
	// apiKey is the optional Bearer token.
	apiKey string
	// client is the shared HTTP client.
	client *http.Client
}

// NewTGIClient constructs a TGIClient.
func NewTGIClient(cfg TGIConfig) *TGIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &TGIClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}
}

// tgiRequest is the JSON body sent to /generate.
type tgiRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters tgiParameters `json:"parameters"`
}

// tgiParameters maps the sampling settings the server understands.
type tgiParameters struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float32 `json:"temperature,omitempty"`
	TopP              float32 `json:"top_p,omitempty"`
	TopK              int     `json:"top_k,omitempty"`
	RepetitionPenalty float32 `json:"repetition_penalty,omitempty"`
	DoSample          bool    `json:"do_sample"`
	ReturnFullText    bool    `json:"return_full_text"`
}

// tgiResponse is one generation result.
type tgiResponse struct {
	GeneratedText string `json:"generated_text"`
}

// tgiError is the error body returned on non-2xx responses.
type tgiError struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// Complete sends prompt to /generate and returns the generated text.
func (c *TGIClient) Complete(ctx context.Context, prompt string, s profile.Sampling) (string, error) {
	body := tgiRequest{
		Inputs: prompt,
		Parameters: tgiParameters{
			MaxNewTokens:      s.MaxNewTokens,
			Temperature:       s.Temperature,
			TopP:              s.TopP,
			TopK:              s.TopK,
			RepetitionPenalty: s.RepetitionPenalty,
			DoSample:          s.DoSample,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: tgi: marshal request: %v", ErrGeneration, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: tgi: create request: %v", ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: tgi: request failed: %w", ErrGeneration, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: tgi: read response: %v", ErrGeneration, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e tgiError
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("%w: tgi: HTTP %d: %s", ErrGeneration, resp.StatusCode, e.Error)
		}
		return "", fmt.Errorf("%w: tgi: HTTP %d", ErrGeneration, resp.StatusCode)
	}

	text, err := decodeGenerated(raw)
	if err != nil {
		return "", fmt.Errorf("%w: tgi: %v", ErrGeneration, err)
	}
	return text, nil
}

// decodeGenerated accepts both the single-object TGI shape and the list shape
// used by the hosted inference API.
func decodeGenerated(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []tgiResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return "", fmt.Errorf("decode response: %w", err)
		}
		if len(list) == 0 {
			return "", fmt.Errorf("empty response list")
		}
		return list[0].GeneratedText, nil
	}
	var one tgiResponse
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return one.GeneratedText, nil
}

// Ping checks the server's /health endpoint.
func (c *TGIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("tgi: create health request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tgi: health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tgi: health check: HTTP %d", resp.StatusCode)
	}
	return nil
}
