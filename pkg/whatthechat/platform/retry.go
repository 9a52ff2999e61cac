package platform

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy bounds how transient fetch failures are retried.
type RetryPolicy struct {
	// MaxRateLimitRetries bounds how often a rate-limited request is
	// retried before the RateLimitError surfaces as fatal.
	MaxRateLimitRetries int

	// MaxTransportRetries bounds retries of network failures on
	// idempotent read operations.
	MaxTransportRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns the policy used by the connectors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRateLimitRetries: 4,
		MaxTransportRetries: 2,
		InitialBackoff:      time.Second,
		MaxBackoff:          30 * time.Second,
	}
}

// Do runs fn, retrying rate-limit and transport errors with exponential
// backoff. The backoff wait is interruptible: ctx cancellation aborts
// the loop and returns ctx.Err(). Auth and not-found errors are never
// retried.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	backoff := p.InitialBackoff
	rateLimitAttempts := 0
	transportAttempts := 0

	for {
		err := fn()
		if err == nil {
			return nil
		}

		var wait time.Duration

		var rle *RateLimitError
		var te *TransportError
		switch {
		case errors.As(err, &rle):
			rateLimitAttempts++
			if rateLimitAttempts > p.MaxRateLimitRetries {
				return err
			}
			wait = backoff
			if rle.RetryAfter > 0 {
				wait = rle.RetryAfter
			}
			logger.Warn("rate limited, backing off",
				"op", op,
				"attempt", rateLimitAttempts,
				"wait", wait,
			)
		case errors.As(err, &te):
			transportAttempts++
			if transportAttempts > p.MaxTransportRetries {
				return err
			}
			wait = backoff
			logger.Warn("transport error, retrying",
				"op", op,
				"attempt", transportAttempts,
				"wait", wait,
				"error", err,
			)
		default:
			// Auth, not-found, or anything unclassified: fatal.
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if backoff < p.MaxBackoff {
			backoff *= 2
		}
	}
}
