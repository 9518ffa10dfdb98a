package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retryBaseDelay is the backoff before the first retry attempt; it
// doubles on each subsequent attempt.
const retryBaseDelay = 500 * time.Millisecond

// PermanentError marks a publish failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry stops immediately instead of retrying.
func Permanent(err error) error { return &PermanentError{Err: err} }

// Retry invokes fn up to 1+retries times with exponential backoff
// between attempts. A failure wrapped with Permanent ends the loop at
// once; context cancellation is honored before every attempt and
// during backoff.
func Retry(ctx context.Context, retries int, fn func() error) error {
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		// Backoff before retries, not before the first attempt.
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * retryBaseDelay
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
