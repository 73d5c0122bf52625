package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxRetries   int           // Retry attempts, not counting the initial attempt
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Exponential growth factor
	Jitter       float64       // Fraction of the delay randomized (0-1)
}

// DefaultRetryConfig returns the retry policy used for transient fetch and
// embed failures: two retries with exponential backoff and 20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// Retry executes fn with exponential backoff. Only errors that Retryable
// classifies as transient are retried; everything else returns immediately.
// Context cancellation aborts the wait and returns the context error.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !Retryable(err) || attempt >= cfg.MaxRetries {
			break
		}

		wait := delay
		// RetryAfter on a rate_limited error overrides the computed backoff.
		if ra := retryAfterOf(err); ra > 0 {
			wait = ra
		} else if cfg.Jitter > 0 {
			wait += time.Duration(rand.Float64() * cfg.Jitter * float64(delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// retryAfterDetail is the Details key carrying a server-provided retry hint.
const retryAfterDetail = "retry_after"

// WithRetryAfter records a server-provided Retry-After hint on the error.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	return e.WithDetail(retryAfterDetail, d.String())
}

func retryAfterOf(err error) time.Duration {
	var we *Error
	if !AsError(err, &we) || we.Details == nil {
		return 0
	}
	d, perr := time.ParseDuration(we.Details[retryAfterDetail])
	if perr != nil {
		return 0
	}
	return d
}
