package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/54b3r/fitcoach-go/internal/logging"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 64 << 10

// inputError is a client mistake reported verbatim with 400 Bad Request.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

// badInput returns an inputError with a formatted message.
func badInput(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// decodeJSON reads a single JSON object from the request body into v.
// Unknown fields are tolerated so older clients keep working.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badInput("request body exceeds %d bytes", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return badInput("request body is empty")
		}
		return badInput("invalid request body: %v", err)
	}
	return nil
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError sends an errorResponse. Callers pass a client-safe message; the
// underlying cause of a 5xx is logged by the caller and never sent.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg})
}

// writeInputError sends 400 for inputErrors and 500 for anything else.
func writeInputError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *inputError
	if errors.As(err, &ie) {
		writeError(w, r, http.StatusBadRequest, ie.msg)
		return
	}
	logging.FromContext(r.Context()).Error("unexpected request error", slog.Any("error", err))
	writeError(w, r, http.StatusInternalServerError, "internal error")
}
