package server

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/54b3r/fitcoach-go/internal/logging"
)

// requestLogger tags the request context with a fresh request id and a
// logger carrying it, echoes the id in X-Request-ID, and logs status and
// latency on completion.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := newRequestID()

		ctx := logging.WithLogger(r.Context(), base.With(
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		))
		ctx = logging.WithRequestID(ctx, reqID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", reqID)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)

		logging.FromContext(ctx).Info("request",
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// responseWriter wraps [http.ResponseWriter] to capture the status code
// written by the handler so the middleware can log it.
type responseWriter struct {
	http.ResponseWriter
	// status is the HTTP status code sent to the client.
	status int
}

// WriteHeader captures the status code before delegating to the underlying writer.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// newRequestID returns 16 random hex characters.
func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b)
}

// recoverer turns a handler panic into a 500 response and an ERROR log entry
// carrying the request id. http.ErrAbortHandler is re-panicked so net/http
// can abort the connection as intended.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logging.FromContext(r.Context()).Error("handler panic",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}
