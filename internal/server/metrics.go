package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// answersTotal counts answer requests (chat, advice, test), partitioned
	// by handler and source: "model" or "fallback".
	answersTotal *prometheus.CounterVec

	// answerDurationSeconds records the pipeline duration seen by the handler.
	answerDurationSeconds *prometheus.HistogramVec

	// answersInFlight is the number of answer pipelines currently running.
	answersInFlight prometheus.Gauge

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, path pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec

	// rateLimitedTotal counts requests rejected with 429, by route class.
	rateLimitedTotal *prometheus.CounterVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		answersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitcoach",
			Subsystem: "api",
			Name:      "answers_total",
			Help:      "Total number of answered questions, partitioned by handler and answer source.",
		}, []string{labelHandler, "source"}),

		answerDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitcoach",
			Subsystem: "api",
			Name:      "answer_duration_seconds",
			Help:      "Wall-clock duration of answer requests from receipt to response.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{labelHandler}),

		answersInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fitcoach",
			Subsystem: "api",
			Name:      "answers_in_flight",
			Help:      "Number of answer pipelines currently running.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitcoach",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fitcoach",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),

		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fitcoach",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter, partitioned by route class.",
		}, []string{"class"}),
	}
}

// instrument wraps next so every request is counted under handler name.
// Using the route name instead of r.URL.Path keeps label cardinality bounded.
func (m *serverMetrics) instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw, ok := w.(*responseWriter)
		if !ok {
			rw = &responseWriter{ResponseWriter: w, status: http.StatusOK}
		}
		start := time.Now()
		next.ServeHTTP(rw, r)
		m.httpRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}
