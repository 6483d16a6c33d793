package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/fitcoach-go/internal/logging"
)

// defaultRateLimit is the sustained answer rate per client when none is
// configured.
const defaultRateLimit = 10

// defaultRateBurst is the answer burst per client when none is configured.
const defaultRateBurst = 20

// limiterTTL is how long an idle client keeps its buckets.
const limiterTTL = 5 * time.Minute

// routeClass groups rate-limited routes that share one budget per client.
type routeClass string

const (
	// classNone marks a route that is not rate limited.
	classNone routeClass = ""
	// classAnswer covers the generation routes: chat, advice, test.
	classAnswer routeClass = "answer"
	// classSearch covers exercise search, which only runs retrieval.
	classSearch routeClass = "search"
	// classMedia covers the routes that spend third-party quota: videos
	// and transcription.
	classMedia routeClass = "media"
)

// ratePolicy is the token bucket of one route class.
type ratePolicy struct {
	rps   rate.Limit
	burst int
}

// classPolicies derives the per-class budgets from the configured answer
// budget. Search is retrieval only and gets twice the answer budget. Media
// routes consume YouTube quota or paid transcription and get half of it,
// with a burst of at least one.
func classPolicies(rps float64, burst int) map[routeClass]ratePolicy {
	return map[routeClass]ratePolicy{
		classAnswer: {rps: rate.Limit(rps), burst: burst},
		classSearch: {rps: rate.Limit(2 * rps), burst: 2 * burst},
		classMedia:  {rps: rate.Limit(rps / 2), burst: max(1, burst/2)},
	}
}

// limiterKey identifies one bucket: a client in a route class.
type limiterKey struct {
	class routeClass
	ip    string
}

// clientLimiter is one bucket and the last time it was used.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces per-client token buckets, one per route class, so a
// burst of transcriptions cannot starve the same client's questions.
type rateLimiter struct {
	// mu guards limiters.
	mu       sync.Mutex
	limiters map[limiterKey]*clientLimiter
	// policies is immutable after construction.
	policies map[routeClass]ratePolicy
	// rejected counts 429s by class. May be nil.
	rejected *prometheus.CounterVec
	log      *slog.Logger
	now      func() time.Time
}

// newRateLimiter starts the idle-bucket eviction loop. Call the returned
// function to stop it.
func newRateLimiter(policies map[routeClass]ratePolicy, rejected *prometheus.CounterVec, log *slog.Logger) (*rateLimiter, func()) {
	rl := &rateLimiter{
		limiters: make(map[limiterKey]*clientLimiter),
		policies: policies,
		rejected: rejected,
		log:      log,
		now:      time.Now,
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// take reports whether the client may proceed on class and, when it may
// not, how long until a token is available.
func (rl *rateLimiter) take(class routeClass, ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := limiterKey{class: class, ip: ip}
	entry, ok := rl.limiters[key]
	if !ok {
		p := rl.policies[class]
		entry = &clientLimiter{limiter: rate.NewLimiter(p.rps, p.burst)}
		rl.limiters[key] = entry
	}
	now := rl.now()
	entry.lastSeen = now

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	wait := r.DelayFrom(now)
	if wait == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, wait
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

// evict drops buckets idle for longer than limiterTTL.
func (rl *rateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-limiterTTL)
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// size returns the number of live buckets.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// middleware rejects requests over the class budget with 429, a Retry-After
// header in whole seconds, and a JSON error body.
func (rl *rateLimiter) middleware(class routeClass, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, wait := rl.take(class, ip)
		if !ok {
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("class", string(class)),
				slog.Duration("retry_after", wait),
			)
			if rl.rejected != nil {
				rl.rejected.WithLabelValues(string(class)).Inc()
			}
			w.Header().Set("Retry-After", retryAfter(wait))
			writeError(w, r, http.StatusTooManyRequests, "too many "+string(class)+" requests, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter renders d as a Retry-After value, rounded up to at least 1s.
func retryAfter(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	return strconv.Itoa(max(1, secs))
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted: the server binds to localhost by default.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
