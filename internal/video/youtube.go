// Package video finds short tutorial videos for an exercise question through
// the YouTube Data API v3.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the YouTube Data API v3 root.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// querySuffix narrows searches to French training tutorials.
const querySuffix = " entraînement tutoriel"

// MaxResults is the largest page size the API accepts.
const MaxResults = 50

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("video: YouTube API key not configured")

// ErrQuotaExhausted is returned when the API answers 403.
var ErrQuotaExhausted = errors.New("video: YouTube API quota exhausted")

// Video is one search hit.
type Video struct {
	// ID is the YouTube video id.
	ID string `json:"video_id"`
	// Title is the video title.
	Title string `json:"title"`
	// URL is the watch page.
	URL string `json:"url"`
	// Channel is the uploader's channel title.
	Channel string `json:"channel"`
	// PublishedAt is zero when the API value cannot be parsed.
	PublishedAt time.Time `json:"published_at"`
}

// Config holds the settings of a Client.
type Config struct {
	// APIKey is the YouTube Data API key. An empty key yields a client whose
	// Search always returns ErrNotConfigured.
	APIKey string
	// BaseURL overrides DefaultBaseURL (tests).
	BaseURL string
	// Language is the relevanceLanguage hint (default: "fr").
	Language string
	// Timeout bounds each HTTP call (default: 15s).
	Timeout time.Duration
	// Limiter throttles outgoing calls (default: 5 per second, burst 5).
	Limiter *rate.Limiter
}

// Client searches YouTube. It is safe for concurrent use.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	limiter  *rate.Limiter
	http     *http.Client
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "fr"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)
	}
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		language: cfg.Language,
		limiter:  cfg.Limiter,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// searchResponse is the subset of the search.list response we read.
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns up to limit tutorial videos for topic. The topic is
// suffixed with " entraînement tutoriel" and results use strict safe search.
func (c *Client) Search(ctx context.Context, topic string, limit int) ([]Video, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("video: empty topic")
	}
	limit = max(1, min(limit, MaxResults))

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("video: rate limit: %w", err)
	}

	params := url.Values{
		"part":              {"snippet"},
		"q":                 {topic + querySuffix},
		"type":              {"video"},
		"maxResults":        {strconv.Itoa(limit)},
		"safeSearch":        {"strict"},
		"relevanceLanguage": {c.language},
		"key":               {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("video: create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrQuotaExhausted
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("video: read response: %w", err)
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("video: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if sr.Error != nil {
		return nil, fmt.Errorf("video: API error %d: %s", sr.Error.Code, sr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video: HTTP %d", resp.StatusCode)
	}

	videos := make([]Video, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.ID.VideoID == "" {
			continue
		}
		pub, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		videos = append(videos, Video{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + url.QueryEscape(item.ID.VideoID),
			Channel:     item.Snippet.ChannelTitle,
			PublishedAt: pub,
		})
	}
	return videos, nil
}
