package provider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the completion layer.
type Metrics struct {
	// breakerTransitions counts circuit breaker state changes by model and
	// target state.
	breakerTransitions *prometheus.CounterVec
	// generationDuration observes backend call latency by model and outcome
	// (ok, error, rejected).
	generationDuration *prometheus.HistogramVec
}

// NewMetrics registers the completion metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		breakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitcoach",
			Subsystem: "provider",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes by model and target state.",
		}, []string{"model", "state"}),
		generationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitcoach",
			Subsystem: "provider",
			Name:      "generation_duration_seconds",
			Help:      "Completion backend latency by model and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model", "outcome"}),
	}
}
