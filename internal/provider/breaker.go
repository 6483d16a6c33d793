package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

// BreakerSettings tunes the per-family circuit breaker. Zero fields take the
// defaults below.
type BreakerSettings struct {
	// MinRequests is the number of requests in the current window before the
	// failure ratio is evaluated (default: 5).
	MinRequests uint32
	// FailureRatio trips the breaker when reached (default: 0.6).
	FailureRatio float64
	// OpenTimeout is how long the breaker stays open before probing again
	// (default: 30s).
	OpenTimeout time.Duration
	// Interval clears the closed-state counts periodically (default: 60s).
	Interval time.Duration
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.Interval <= 0 {
		s.Interval = 60 * time.Second
	}
	return s
}

// breakerCompleter guards a Completer with a circuit breaker. While the
// breaker is open, calls fail fast with ErrNotLoaded. Each call invokes the
// wrapped completer at most once.
type breakerCompleter struct {
	// family labels metrics and logs.
	family profile.Family
	// inner is the guarded completer.
	inner Completer
	// cb is the circuit breaker.
	cb *gobreaker.CircuitBreaker
	// metrics may be nil.
	metrics *Metrics
}

func newBreakerCompleter(f profile.Family, inner Completer, s BreakerSettings, log *slog.Logger, m *Metrics) *breakerCompleter {
	s = s.withDefaults()
	b := &breakerCompleter{family: f, inner: inner, metrics: m}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        f.String(),
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < s.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= s.FailureRatio
		},
		// A caller that gave up says nothing about the backend's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("provider: circuit breaker state change",
				slog.String("model", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if m != nil {
				m.breakerTransitions.WithLabelValues(name, to.String()).Inc()
			}
		},
	})
	return b
}

// Complete runs the wrapped completer through the breaker.
func (b *breakerCompleter) Complete(ctx context.Context, prompt string, s profile.Sampling) (string, error) {
	start := time.Now()
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, prompt, s)
	})

	outcome := "ok"
	defer func() {
		if b.metrics != nil {
			b.metrics.generationDuration.WithLabelValues(b.family.String(), outcome).Observe(time.Since(start).Seconds())
		}
	}()

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		return "", fmt.Errorf("%w: %s: %v", ErrNotLoaded, b.family, err)
	case err != nil:
		outcome = "error"
		if !errors.Is(err, ErrGeneration) {
			err = fmt.Errorf("%w: %w", ErrGeneration, err)
		}
		return "", err
	}
	text, _ := out.(string)
	return text, nil
}

// open reports whether calls are currently being rejected.
func (b *breakerCompleter) open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// state returns the breaker state name.
func (b *breakerCompleter) state() string {
	return b.cb.State().String()
}
