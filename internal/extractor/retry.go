// Package extractor executes a Strategy against a live browser page,
// yielding a flat list of discovered categories for that page (spec.md
// §4.6). One routine per navigation_type tag, dispatched by a plain
// switch — a tagged variant, not an inheritance hierarchy (spec.md §9).
package extractor

import (
	"context"
	"time"
)

// RetryPolicy bounds the Extractor's per-action retry loop (default 3
// attempts, fixed backoff, per spec.md §4.6 — a tenacity-style helper
// applied uniformly rather than inline retry loops, per spec.md §9).
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches §4.6's stated default.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 500 * time.Millisecond}
}

// withRetry runs op up to policy.MaxAttempts times with fixed backoff,
// returning the last error if every attempt fails.
func withRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	var lastErr error
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.Delay):
			}
		}
		if err := op(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
