// Package retry provides bounded retries with doubling backoff.
package retry

import (
	"context"
	"log"
	"time"
)

// Policy configures how many times an operation is attempted and how long to wait between attempts.
type Policy struct {
	Attempts int           // Total attempts, including the first
	Backoff  time.Duration // Wait before the second attempt; doubled after each failure
	// Retryable decides whether an error is worth another attempt. Nil retries every error.
	Retryable func(error) bool
	// Label prefixes log lines (e.g. "mail fetch").
	Label string
}

// Do runs fn until it succeeds, the policy is exhausted, the error is not retryable,
// or ctx is done. The last error is returned unchanged so callers can inspect it with errors.As.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		if p.Label != "" {
			log.Printf("[retry] %s failed (attempt %d/%d): %v; retrying in %v", p.Label, i+1, attempts, err, sleep)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		sleep *= 2
	}
	return err
}
