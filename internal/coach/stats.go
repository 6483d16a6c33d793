package coach

import (
	"sync"
	"time"

	"github.com/54b3r/fitcoach-go/internal/profile"
)

// Stats is a point-in-time snapshot of the service counters.
type Stats struct {
	// Total counts every Answer call.
	Total int
	// Successful counts accepted model answers.
	Successful int
	// Fallback counts answers served by the fallback path.
	Fallback int
	// AvgLatencySeconds is the running mean latency of successful answers.
	AvgLatencySeconds float64
	// PerModelUsage counts generation attempts against a loaded model, keyed
	// by family id.
	PerModelUsage map[string]int
	// LastRequestTime is the time of the last successful answer, zero if none.
	LastRequestTime time.Time

	// Status is "healthy" when any model is loaded, else "degraded".
	Status string
	// CurrentModel is the default family of Answer.
	CurrentModel profile.Family
	// RAGEnabled reports whether semantic search is available.
	RAGEnabled bool
	// CorpusSize is the number of indexed documents.
	CorpusSize int
	// InitializationTime is how long Init took.
	InitializationTime time.Duration
	// InitializationError is the Init failure message, empty on success.
	InitializationError string
}

// counters holds the mutable request counters. All methods are safe for
// concurrent use.
type counters struct {
	mu         sync.Mutex
	total      int
	successful int
	fallback   int
	avg        float64
	usage      map[profile.Family]int
	last       time.Time
}

func newCounters() *counters {
	return &counters{usage: make(map[profile.Family]int)}
}

func (c *counters) begin() {
	c.mu.Lock()
	c.total++
	c.mu.Unlock()
}

func (c *counters) attempt(f profile.Family) {
	c.mu.Lock()
	c.usage[f]++
	c.mu.Unlock()
}

// success folds latency into the running mean: avg' = (avg*(n-1)+x)/n.
func (c *counters) success(latency time.Duration, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successful++
	n := float64(c.successful)
	c.avg = (c.avg*(n-1) + latency.Seconds()) / n
	c.last = at
}

func (c *counters) fellBack() {
	c.mu.Lock()
	c.fallback++
	c.mu.Unlock()
}

// fill copies the counters into s.
func (c *counters) fill(s *Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Total = c.total
	s.Successful = c.successful
	s.Fallback = c.fallback
	s.AvgLatencySeconds = c.avg
	s.LastRequestTime = c.last
	s.PerModelUsage = make(map[string]int, len(profile.Families))
	for _, f := range profile.Families {
		s.PerModelUsage[f.String()] = c.usage[f]
	}
}
