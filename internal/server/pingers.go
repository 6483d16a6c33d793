package server

import (
	"github.com/54b3r/fitcoach-go/internal/provider"
)

// Probes assembles the readiness probes for GET /api/ready: one per loaded
// model family, followed by the non-nil extras (e.g. the Qdrant store and the
// journal). Model probes come first so a missing backend is the first check
// an operator reads.
func Probes(models []provider.ModelPinger, extra ...Pinger) []Pinger {
	out := make([]Pinger, 0, len(models)+len(extra))
	for _, m := range models {
		out = append(out, m)
	}
	for _, p := range extra {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
