// Package coach runs the answer pipeline: retrieve context, assemble the
// prompt, generate, clean up, and fall back to canned answers whenever any
// step cannot deliver. A Service is constructed once at startup and shared by
// all requests.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/54b3r/fitcoach-go/internal/corpus"
	"github.com/54b3r/fitcoach-go/internal/fallback"
	"github.com/54b3r/fitcoach-go/internal/logging"
	"github.com/54b3r/fitcoach-go/internal/postproc"
	"github.com/54b3r/fitcoach-go/internal/profile"
	"github.com/54b3r/fitcoach-go/internal/prompt"
	"github.com/54b3r/fitcoach-go/internal/provider"
	"github.com/54b3r/fitcoach-go/internal/rag"
)

// ErrIncoherentOutput reports a generation rejected by the acceptance test.
var ErrIncoherentOutput = errors.New("coach: incoherent output")

// ErrUnknownModel reports a family outside the supported set.
var ErrUnknownModel = errors.New("coach: unknown model")

// Models is the completion capability the service drives. *provider.Registry
// implements it.
type Models interface {
	// IsLoaded reports whether f can serve requests right now.
	IsLoaded(f profile.Family) bool
	// Completer returns the completer of f or an error wrapping
	// provider.ErrNotLoaded.
	Completer(f profile.Family) (provider.Completer, error)
	// Load makes f available.
	Load(ctx context.Context, f profile.Family) error
	// LoadAll loads every configured family.
	LoadAll(ctx context.Context) error
}

// Config holds the dependencies of a Service.
type Config struct {
	// Corpus is the document collection. Required.
	Corpus *corpus.Store

	// Index ranks Corpus documents. Required; an unbuilt index degrades to
	// store order.
	Index *rag.Index

	// Profiles resolves model families (default: built-in profiles).
	Profiles *profile.Table

	// Models provides completion. Required.
	Models Models

	// DefaultModel is the initial current model (default: local_distilgpt2).
	DefaultModel profile.Family

	// Threshold is the minimum relevance score of a selected document. Nil
	// selects rag.DefaultThreshold; 0 keeps every retrieved document.
	Threshold *float32

	// Logger is the component logger (default: slog.Default()).
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Service answers fitness questions. It is safe for concurrent use.
type Service struct {
	docs      *corpus.Store
	index     *rag.Index
	profiles  *profile.Table
	models    Models
	threshold float32
	log       *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	stats *counters

	// mu guards current.
	mu      sync.RWMutex
	current profile.Family

	// initMu guards the Init outcome.
	initMu   sync.RWMutex
	initTime time.Duration
	initErr  string
}

// New validates cfg and returns a Service. Call Init before serving.
func New(cfg Config) (*Service, error) {
	if cfg.Corpus == nil {
		return nil, fmt.Errorf("coach: corpus must not be nil")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("coach: index must not be nil")
	}
	if cfg.Models == nil {
		return nil, fmt.Errorf("coach: models must not be nil")
	}
	if cfg.Profiles == nil {
		t, err := profile.NewTable(nil)
		if err != nil {
			return nil, fmt.Errorf("coach: profiles: %w", err)
		}
		cfg.Profiles = t
	}
	if cfg.DefaultModel == profile.Unspecified {
		cfg.DefaultModel = profile.DistilGPT2
	}
	if !cfg.DefaultModel.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownModel, cfg.DefaultModel)
	}
	threshold := rag.DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("coach: threshold must be in [0, 1], got %v", threshold)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		docs:      cfg.Corpus,
		index:     cfg.Index,
		profiles:  cfg.Profiles,
		models:    cfg.Models,
		threshold: threshold,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		stats:     newCounters(),
		current:   cfg.DefaultModel,
	}, nil
}

// Init builds the index and loads every configured model. Failures are
// logged and leave the service degraded rather than stopped. The returned
// error is non-nil only when no model could be loaded; it is also reported
// by Stats.
func (s *Service) Init(ctx context.Context) error {
	start := s.now()

	if err := s.index.Build(ctx); err != nil {
		s.log.Warn("coach: semantic search disabled", slog.String("error", err.Error()))
	}
	if err := s.models.LoadAll(ctx); err != nil {
		s.log.Warn("coach: some models failed to load", slog.String("error", err.Error()))
	}

	var loaded []string
	for _, f := range profile.Families {
		if s.models.IsLoaded(f) {
			loaded = append(loaded, f.String())
		}
	}

	var initErr error
	if len(loaded) == 0 {
		initErr = fmt.Errorf("coach: no model could be loaded")
	}

	elapsed := s.now().Sub(start)
	s.initMu.Lock()
	s.initTime = elapsed
	if initErr != nil {
		s.initErr = initErr.Error()
	} else {
		s.initErr = ""
	}
	s.initMu.Unlock()

	if initErr != nil {
		s.log.Error("coach: initialization degraded", slog.String("error", initErr.Error()))
		return initErr
	}
	s.log.Info("coach: initialized",
		slog.Any("models", loaded),
		slog.Bool("rag_enabled", s.index.Available()),
		slog.Int("corpus_size", s.docs.Len()),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// CurrentModel returns the family used when Answer is called without one.
func (s *Service) CurrentModel() profile.Family {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Answer runs the pipeline for question on family f, or on the current model
// when f is Unspecified. It never fails: every error path ends in a fallback
// answer.
func (s *Service) Answer(ctx context.Context, question string, f profile.Family) Result {
	start := s.now()
	if f == profile.Unspecified {
		f = s.CurrentModel()
	}
	p, ok := s.profiles.Get(f)
	if !ok {
		// Unreachable through the HTTP and CLI layers, which validate ids.
		f = s.CurrentModel()
		p, _ = s.profiles.Get(f)
	}
	s.stats.begin()

	matches := s.index.Search(ctx, question, p.ContextDocs)
	docs := rag.Select(matches, p.ContextDocs, s.threshold)

	log := s.log.With(slog.String("model", f.String()))
	if id := logging.RequestID(ctx); id != "" {
		log = log.With(slog.String("request_id", id))
	}

	c, err := s.models.Completer(f)
	if err != nil {
		return s.fallback(log, question, p, fallback.ReasonUnavailable, docs, start, err)
	}
	s.stats.attempt(f)

	raw, err := c.Complete(ctx, prompt.Build(p, question, docs), p.Sampling)
	if err != nil {
		reason := fallback.ReasonGeneration
		if errors.Is(err, provider.ErrNotLoaded) {
			reason = fallback.ReasonUnavailable
		}
		return s.fallback(log, question, p, reason, docs, start, err)
	}

	text, ok := postproc.Process(raw, p)
	if !ok {
		return s.fallback(log, question, p, fallback.ReasonIncoherent, docs, start,
			fmt.Errorf("%w: %q", ErrIncoherentOutput, text))
	}

	end := s.now()
	latency := end.Sub(start)
	s.stats.success(latency, end)

	res := Result{
		Text:        text,
		Source:      SourceModel,
		ContextUsed: len(docs) > 0,
		Confidence:  ConfidenceMedium,
		Latency:     latency,
		Model:       f,
		ModelName:   p.Name,
		Sources:     corpus.Titles(docs),
		RAGEnabled:  s.index.Available(),
	}
	if res.ContextUsed {
		res.Confidence = ConfidenceHigh
	}
	s.metrics.observe(res)
	log.Info("coach: answered",
		slog.String("source", string(res.Source)),
		slog.Int("context_docs", len(docs)),
		slog.Duration("latency", latency),
	)
	return res
}

// fallback builds the canned answer for reason and records it.
func (s *Service) fallback(log *slog.Logger, question string, p profile.Profile, reason fallback.Reason, docs []corpus.Document, start time.Time, cause error) Result {
	s.stats.fellBack()

	sources := corpus.Titles(docs)
	if len(sources) == 0 {
		sources = []string{fallback.BasicGuidance(p.Language)}
	}
	res := Result{
		Text:           fallback.Respond(question, p.Family, reason, docs),
		Source:         SourceFallback,
		ContextUsed:    len(docs) > 0,
		Confidence:     ConfidenceMedium,
		Latency:        s.now().Sub(start),
		Model:          p.Family,
		ModelName:      "Fallback " + p.Name,
		Sources:        sources,
		RAGEnabled:     s.index.Available(),
		FallbackReason: reason,
	}
	s.metrics.observe(res)
	log.Warn("coach: fallback answer",
		slog.String("source", string(res.Source)),
		slog.String("fallback_reason", string(reason)),
		slog.String("error", cause.Error()),
		slog.Duration("latency", res.Latency),
	)
	return res
}

// Stats returns a snapshot of the counters and service state.
func (s *Service) Stats() Stats {
	var st Stats
	s.stats.fill(&st)

	st.Status = "degraded"
	for _, f := range profile.Families {
		if s.models.IsLoaded(f) {
			st.Status = "healthy"
			break
		}
	}
	st.CurrentModel = s.CurrentModel()
	st.RAGEnabled = s.index.Available()
	st.CorpusSize = s.docs.Len()

	s.initMu.RLock()
	st.InitializationTime = s.initTime
	st.InitializationError = s.initErr
	s.initMu.RUnlock()
	return st
}

// ModelInfo describes one family for model listings.
type ModelInfo struct {
	// Profile is the resolved profile.
	Profile profile.Profile
	// Loaded reports whether the family can serve requests.
	Loaded bool
	// Current is true for the current model.
	Current bool
}

// Models lists every supported family in display order.
func (s *Service) Models() []ModelInfo {
	current := s.CurrentModel()
	out := make([]ModelInfo, 0, len(profile.Families))
	for _, p := range s.profiles.All() {
		out = append(out, ModelInfo{
			Profile: p,
			Loaded:  s.models.IsLoaded(p.Family),
			Current: p.Family == current,
		})
	}
	return out
}

// Profile returns the resolved profile of f.
func (s *Service) Profile(f profile.Family) (profile.Profile, bool) {
	return s.profiles.Get(f)
}

// SwitchModel makes f the current model, loading it first if needed. It
// returns the previous current model.
func (s *Service) SwitchModel(ctx context.Context, f profile.Family) (profile.Family, error) {
	if !f.Valid() {
		return s.CurrentModel(), fmt.Errorf("%w: %v", ErrUnknownModel, f)
	}
	if !s.models.IsLoaded(f) {
		s.log.Info("coach: loading model before switch", slog.String("model", f.String()))
		if err := s.models.Load(ctx, f); err != nil {
			return s.CurrentModel(), fmt.Errorf("coach: switch to %s: %w", f, err)
		}
		if !s.models.IsLoaded(f) {
			return s.CurrentModel(), fmt.Errorf("coach: switch to %s: %w", f, provider.ErrNotLoaded)
		}
	}

	s.mu.Lock()
	old := s.current
	s.current = f
	s.mu.Unlock()

	s.log.Info("coach: model switched", slog.String("from", old.String()), slog.String("to", f.String()))
	return old, nil
}

// SearchExercises ranks the corpus against query, keeps at most limit matches
// above the relevance threshold (all of them when search is degraded), and
// applies filter.
func (s *Service) SearchExercises(ctx context.Context, query string, filter corpus.Filter, limit int) []rag.Match {
	matches := s.index.Search(ctx, query, limit)
	out := make([]rag.Match, 0, len(matches))
	for _, m := range matches {
		if m.Scored && m.Score < s.threshold {
			continue
		}
		if !filter.Match(m.Doc) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Categories summarises the corpus facets.
func (s *Service) Categories() corpus.Categories {
	return s.docs.Categories()
}

// RAGEnabled reports whether semantic search is available.
func (s *Service) RAGEnabled() bool {
	return s.index.Available()
}
