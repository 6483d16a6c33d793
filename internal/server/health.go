package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/fitcoach-go/internal/logging"
	"github.com/54b3r/fitcoach-go/internal/version"
)

// probeTimeout is the maximum time allowed for each individual dependency
// probe during a readiness check. Kept short so /api/ready responds quickly
// even when a dependency is slow rather than unreachable.
const probeTimeout = 5 * time.Second

// Pinger is the interface implemented by any dependency that can report its
// own reachability. Each implementation must return nil when the dependency
// is healthy and a descriptive error otherwise.
// Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping checks whether the dependency is reachable within the given context.
	// Returns nil on success, a descriptive error on failure.
	Ping(ctx context.Context) error

	// Name returns a short human-readable label used in readiness responses
	// (e.g. "model:local_distilgpt2", "qdrant").
	Name() string
}

// readyCheck holds the per-dependency result of a readiness probe.
type readyCheck struct {
	// Name is the dependency label (e.g. "model:local_distilgpt2", "qdrant").
	Name string `json:"name"`
	// OK is true when the dependency responded successfully.
	OK bool `json:"ok"`
	// Error contains the failure reason when OK is false. Empty on success.
	Error string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every dependency probe succeeded.
	Ready bool `json:"ready"`
	// Checks contains the per-dependency probe results.
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready for readiness checks.
// It probes each registered Pinger with a short timeout and returns 200 when
// all dependencies are reachable, or 503 when any probe fails.
// Unlike /api/health (liveness), this endpoint reflects actual dependency state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true}
	allOK := true

	for _, p := range s.pingers {
		probeCtx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Ping(probeCtx)
		cancel()

		check := readyCheck{Name: p.Name(), OK: err == nil}
		if err != nil {
			check.Error = err.Error()
			allOK = false
			log.Warn("readiness probe failed",
				slog.String("dependency", p.Name()),
				slog.Any("error", err),
			)
		}
		resp.Checks = append(resp.Checks, check)
	}

	resp.Ready = allOK

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, r, status, resp)
}

// handleHealth handles GET /api/health for liveness checks. It always returns
// 200 while the process is serving; Status reports "degraded" when no model
// is loaded so operators can tell a fallback-only instance apart.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.coach.Stats()
	build := version.Get()
	resp := healthResponse{
		Status:             st.Status,
		Service:            "fitcoach",
		Version:            build.Version,
		Build:              build,
		CurrentModel:       st.CurrentModel.String(),
		LoadedModels:       []string{},
		RAGEnabled:         st.RAGEnabled,
		ExerciseDBSize:     st.CorpusSize,
		TotalRequests:      st.Total,
		SuccessfulRequests: st.Successful,
		AverageResponse:    st.AvgLatencySeconds,
		UptimeSeconds:      time.Since(s.started).Seconds(),
		Timestamp:          time.Now().UTC(),
	}
	for _, m := range s.coach.Models() {
		if m.Loaded {
			resp.LoadedModels = append(resp.LoadedModels, m.Profile.Family.String())
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}
