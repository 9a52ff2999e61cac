package platform

import (
	"fmt"
	"time"
)

// AuthError indicates invalid or expired platform credentials.
// Fatal: surfaced immediately, never retried.
type AuthError struct {
	Platform string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed (check token): %v", e.Platform, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the channel identifier did not resolve. Fatal.
type NotFoundError struct {
	Platform string
	Channel  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: channel %q not found", e.Platform, e.Channel)
}

// RateLimitError indicates the platform throttled a request. Transient:
// connectors retry it internally with bounded exponential backoff before
// surfacing it as fatal.
type RateLimitError struct {
	Platform   string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s): %v", e.Platform, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s: rate limited: %v", e.Platform, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransportError indicates a network-level failure. Retried a small
// bounded number of times for idempotent reads, then fatal.
type TransportError struct {
	Platform string
	Op       string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: network failure: %v", e.Platform, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
