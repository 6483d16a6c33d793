// Package server implements the HTTP API of the fitness coach: answers,
// exercise search, model management, feedback, video lookup, transcription,
// and the operational health, readiness, and metrics endpoints.
// The server is started by the `fitcoach serve` CLI command.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// New constructs a Server from the provided collaborators and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Coach == nil {
		return nil, fmt.Errorf("server: coach must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8001
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must outlast the slowest answer pipeline.
		cfg.WriteTimeout = cfg.ChatTimeout + 30*time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		reg := prometheus.NewRegistry()
		cfg.MetricsRegistry = reg
		if cfg.MetricsGatherer == nil {
			cfg.MetricsGatherer = reg
		}
	}
	if cfg.MetricsGatherer == nil {
		if g, ok := cfg.MetricsRegistry.(prometheus.Gatherer); ok {
			cfg.MetricsGatherer = g
		} else {
			cfg.MetricsGatherer = prometheus.DefaultGatherer
		}
	}

	if cfg.APIKey == "" {
		cfg.Logger.Warn("server: FITCOACH_API_KEY not set, authentication disabled")
	}

	metrics := newServerMetrics(cfg.MetricsRegistry)
	rl, stopRL := newRateLimiter(classPolicies(cfg.RateLimit, cfg.RateBurst), metrics.rateLimitedTotal, cfg.Logger)
	var stopOnce sync.Once

	s := &Server{
		coach:       deps.Coach,
		journal:     deps.Journal,
		videos:      deps.Videos,
		transcriber: deps.Transcriber,
		cfg:         cfg,
		log:         cfg.Logger,
		pingers:     cfg.Pingers,
		metrics:     metrics,
		stopRL:      func() { stopOnce.Do(stopRL) },
		started:     time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(rl),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// routes builds the mux and wraps it in the middleware chain:
// otelhttp → requestLogger → recoverer → mux, with per-route metrics, auth,
// and rate limiting.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	mux := http.NewServeMux()

	// handle registers a route. open routes skip auth; routes with a class
	// pass through that class's per-client rate limit.
	handle := func(pattern, name string, h http.HandlerFunc, open bool, class routeClass) {
		var next http.Handler = h
		if class != classNone {
			next = rl.middleware(class, next)
		}
		if !open {
			next = authMiddleware(s.cfg.APIKey, next)
		}
		mux.Handle(pattern, s.metrics.instrument(name, next))
	}

	handle("POST /api/chat", "chat", s.handleChat, false, classAnswer)
	handle("POST /api/advice", "advice", s.handleAdvice, false, classAnswer)
	handle("GET /api/test", "test", s.handleTest, false, classAnswer)
	handle("POST /api/exercises/search", "exercises_search", s.handleSearch, false, classSearch)
	handle("GET /api/videos", "videos", s.handleVideos, false, classMedia)
	handle("POST /api/transcribe", "transcribe", s.handleTranscribe, false, classMedia)
	handle("GET /api/exercises/categories", "exercises_categories", s.handleCategories, false, classNone)
	handle("GET /api/stats", "stats", s.handleStats, false, classNone)
	handle("GET /api/models", "models", s.handleModels, false, classNone)
	handle("POST /api/models/switch", "models_switch", s.handleSwitch, false, classNone)
	handle("POST /api/feedback", "feedback", s.handleFeedback, false, classNone)
	handle("GET /api/health", "health", s.handleHealth, true, classNone)
	handle("GET /api/ready", "ready", s.handleReady, true, classNone)

	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	var h http.Handler = recoverer(mux)
	h = requestLogger(s.log, h)
	return otelhttp.NewHandler(h, "fitcoach")
}

// Handler returns the fully wrapped HTTP handler. It is used by tests and by
// callers embedding the API in another server.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.log.Info("server: shutting down", slog.Duration("timeout", s.cfg.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}
