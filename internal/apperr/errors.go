// Package apperr holds the sentinel errors shared across services and transports.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")

	// Upstream AI/speech/voice failures.
	ErrRateLimited       = errors.New("rate limited")
	ErrQuotaExhausted    = errors.New("quota exhausted")
	ErrUpstream          = errors.New("upstream failure")
	ErrMalformedResponse = errors.New("malformed upstream response")
	ErrNotConfigured     = errors.New("not configured")
)

// maxBodyInError caps how much of an upstream body is quoted in an error.
const maxBodyInError = 256

// FromStatus maps a non-2xx upstream response to a sentinel.
func FromStatus(service string, code int, body []byte) error {
	switch code {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", service, ErrRateLimited)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%s: %w", service, ErrQuotaExhausted)
	}
	if len(body) > maxBodyInError {
		body = body[:maxBodyInError]
	}
	return fmt.Errorf("%s: %w: status %d: %s", service, ErrUpstream, code, body)
}

// Outcome labels an upstream call result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	default:
		return "error"
	}
}
