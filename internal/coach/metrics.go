package coach

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the answer pipeline.
type Metrics struct {
	// answersTotal counts answers by model, source, and fallback reason
	// ("none" for model answers).
	answersTotal *prometheus.CounterVec
	// answerDuration observes Answer latency by model and source.
	answerDuration *prometheus.HistogramVec
}

// NewMetrics registers the pipeline metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		answersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitcoach",
			Subsystem: "coach",
			Name:      "answers_total",
			Help:      "Answers served, partitioned by model, source, and fallback reason.",
		}, []string{"model", "source", "reason"}),
		answerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitcoach",
			Subsystem: "coach",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end Answer latency, partitioned by model and source.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"model", "source"}),
	}
}

func (m *Metrics) observe(r Result) {
	if m == nil {
		return
	}
	reason := string(r.FallbackReason)
	if reason == "" {
		reason = "none"
	}
	m.answersTotal.WithLabelValues(r.Model.String(), string(r.Source), reason).Inc()
	m.answerDuration.WithLabelValues(r.Model.String(), string(r.Source)).Observe(r.Latency.Seconds())
}
