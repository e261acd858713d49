package telephony

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned on HTTP 429. The concrete error is a
	// resilience.TransientError carrying the Retry-After hint.
	ErrRateLimited = errors.New("telephony: rate limited")

	// ErrUnauthorized is returned when a request is still rejected after one
	// token refresh.
	ErrUnauthorized = errors.New("telephony: unauthorized")

	ErrInvalidPhone = errors.New("telephony: invalid phone number")
	ErrEmptyMessage = errors.New("telephony: empty message text")
)

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	// ErrorCode and Message come from the RingCentral error body when present.
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("telephony: %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("telephony: %s %s: %d", e.Method, e.Path, e.StatusCode)
}
