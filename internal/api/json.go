package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/starford/alignos/internal/apperr"
)

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 10 << 20

// Messages returned for upstream failures.
const (
	msgRateLimited    = "Rate limit exceeded. Please try again later."
	msgQuotaExhausted = "AI credits exhausted. Please add funds to continue."
	msgMalformed      = "Unexpected response format from AI"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// decodeJSON reads a bounded JSON body into v. It writes the 400 response
// itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// writeError maps a service error to a status code and client message.
// Unexpected errors are logged as "<op> failed".
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("conflict"))
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
	case errors.Is(err, apperr.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody(msgRateLimited))
	case errors.Is(err, apperr.ErrQuotaExhausted):
		writeJSON(w, http.StatusPaymentRequired, errorBody(msgQuotaExhausted))
	case errors.Is(err, apperr.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("service not configured"))
	case errors.Is(err, apperr.ErrMalformedResponse):
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(msgMalformed))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// validationMessage drops the package prefix and sentinel text from a
// wrapped validation error.
func validationMessage(err error) string {
	msg := err.Error()
	marker := apperr.ErrValidation.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return "invalid request"
}
