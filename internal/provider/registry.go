package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

// RegistryConfig holds the inputs of NewRegistry.
type RegistryConfig struct {
	// Configs lists the backend settings per family. Families without an
	// enabled entry can only be registered explicitly.
	Configs []Config

	// Breaker tunes the circuit breaker wrapped around every completer.
	Breaker BreakerSettings

	// Logger receives load and breaker events (default: slog.Default()).
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// Build constructs a completer from a config (default: New).
	Build func(context.Context, Config) (Completer, error)
}

// Registry tracks which model families have a usable backend. It is safe for
// concurrent use.
type Registry struct {
	// mu guards entries.
	mu sync.RWMutex
	// configs is immutable after NewRegistry.
	configs map[profile.Family]Config
	// entries holds the loaded families.
	entries map[profile.Family]*entry
	// breaker is applied to every registered completer.
	breaker BreakerSettings
	// log is never nil.
	log *slog.Logger
	// metrics may be nil.
	metrics *Metrics
	// build constructs completers on Load.
	build func(context.Context, Config) (Completer, error)
}

// entry is one loaded family.
type entry struct {
	// backend is the backend kind, or empty for explicitly registered completers.
	backend Backend
	// inner is the raw completer.
	inner Completer
	// guarded wraps inner with the circuit breaker.
	guarded *breakerCompleter
}

// NewRegistry returns a Registry with nothing loaded.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		configs: make(map[profile.Family]Config, len(cfg.Configs)),
		entries: make(map[profile.Family]*entry),
		breaker: cfg.Breaker,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		build:   cfg.Build,
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.build == nil {
		r.build = New
	}
	for _, c := range cfg.Configs {
		if !c.Family.Valid() {
			return nil, fmt.Errorf("provider: registry: unsupported model family %v", c.Family)
		}
		if _, dup := r.configs[c.Family]; dup {
			return nil, fmt.Errorf("provider: registry: duplicate config for %s", c.Family)
		}
		r.configs[c.Family] = c
	}
	return r, nil
}

// Configured reports whether family f has an enabled backend config.
func (r *Registry) Configured(f profile.Family) bool {
	c, ok := r.configs[f]
	return ok && c.Enabled
}

// Load builds and registers the backend of family f. Loading an already
// loaded family is a no-op.
func (r *Registry) Load(ctx context.Context, f profile.Family) error {
	if r.isRegistered(f) {
		return nil
	}
	cfg, ok := r.configs[f]
	if !ok || !cfg.Enabled {
		return fmt.Errorf("%w: %s has no configured backend", ErrNotLoaded, f)
	}
	c, err := r.build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("provider: load %s: %w", f, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[f]; exists {
		return nil
	}
	r.entries[f] = r.newEntry(f, cfg.Backend, c)
	r.log.Info("provider: model loaded",
		slog.String("model", f.String()),
		slog.String("backend", string(cfg.Backend)),
		slog.String("source", cfg.Model),
	)
	return nil
}

// LoadAll loads every enabled family. It attempts all of them and returns
// the joined errors of those that failed.
func (r *Registry) LoadAll(ctx context.Context) error {
	var errs []error
	for _, f := range profile.Families {
		if !r.Configured(f) {
			continue
		}
		if err := r.Load(ctx, f); err != nil {
			r.log.Warn("provider: model load failed",
				slog.String("model", f.String()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Register installs c as the backend of family f, replacing any previous one.
func (r *Registry) Register(f profile.Family, c Completer) error {
	if !f.Valid() {
		return fmt.Errorf("provider: registry: unsupported model family %v", f)
	}
	if c == nil {
		return fmt.Errorf("provider: registry: nil completer for %s", f)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[f] = r.newEntry(f, "", c)
	return nil
}

func (r *Registry) newEntry(f profile.Family, b Backend, c Completer) *entry {
	return &entry{
		backend: b,
		inner:   c,
		guarded: newBreakerCompleter(f, c, r.breaker, r.log, r.metrics),
	}
}

func (r *Registry) isRegistered(f profile.Family) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[f]
	return ok
}

func (r *Registry) lookup(f profile.Family) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[f]
	return e, ok
}

// IsLoaded reports whether family f is loaded and its breaker is not open.
func (r *Registry) IsLoaded(f profile.Family) bool {
	e, ok := r.lookup(f)
	return ok && !e.guarded.open()
}

// Completer returns the breaker-guarded completer of family f, or an error
// wrapping ErrNotLoaded.
func (r *Registry) Completer(f profile.Family) (Completer, error) {
	e, ok := r.lookup(f)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, f)
	}
	if e.guarded.open() {
		return nil, fmt.Errorf("%w: %s: circuit breaker open", ErrNotLoaded, f)
	}
	return e.guarded, nil
}

// Loaded returns the loaded families in declaration order.
func (r *Registry) Loaded() []profile.Family {
	var out []profile.Family
	for _, f := range profile.Families {
		if r.IsLoaded(f) {
			out = append(out, f)
		}
	}
	return out
}

// Backend returns the backend kind serving family f, or "" when it is not
// loaded or was registered explicitly.
func (r *Registry) Backend(f profile.Family) Backend {
	e, ok := r.lookup(f)
	if !ok {
		return ""
	}
	return e.backend
}

// BreakerState returns the breaker state name of family f ("closed",
// "half-open", "open"), or "" when it is not loaded.
func (r *Registry) BreakerState(f profile.Family) string {
	e, ok := r.lookup(f)
	if !ok {
		return ""
	}
	return e.guarded.state()
}

// ModelPinger probes one loaded family for readiness checks.
type ModelPinger struct {
	// family is the probed model.
	family profile.Family
	// e is the loaded entry.
	e *entry
}

// Name returns "model:<family>".
func (p ModelPinger) Name() string { return "model:" + p.family.String() }

// Ping fails while the breaker is open. Otherwise it probes the backend when
// the completer supports it.
func (p ModelPinger) Ping(ctx context.Context) error {
	if p.e.guarded.open() {
		return fmt.Errorf("provider: %s: circuit breaker open", p.family)
	}
	if pg, ok := p.e.inner.(Pinger); ok {
		return pg.Ping(ctx)
	}
	return nil
}

// Pingers returns one probe per loaded family, in declaration order.
func (r *Registry) Pingers() []ModelPinger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelPinger
	for _, f := range profile.Families {
		if e, ok := r.entries[f]; ok {
			out = append(out, ModelPinger{family: f, e: e})
		}
	}
	return out
}
