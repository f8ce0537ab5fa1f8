/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// MinRetryAfter is the shortest pause between two Allow calls of a Waiter.
const MinRetryAfter = time.Millisecond

// Waiter blocks callers until the Limiter allows them.
type Waiter struct {
	limiter Limiter
}

// NewWaiter creates a Waiter around the given Limiter.
func NewWaiter(limiter Limiter) *Waiter {
	return &Waiter{limiter: limiter}
}

// Acquire polls the limiter, sleeping for the reported retryAfter between attempts,
// until it allows the request. It returns ctx.Err() if ctx is done first.
func (w *Waiter) Acquire(ctx context.Context) error {
	allow, retryAfter, err := w.limiter.Allow(ctx)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if allow {
		return nil
	}

	retryTimer := time.NewTimer(clampRetryAfter(retryAfter))
	defer retryTimer.Stop()

	for {
		select {
		case <-retryTimer.C:
		case <-ctx.Done():
			return ctx.Err()
		}

		if allow, retryAfter, err = w.limiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		if allow {
			return nil
		}
		retryTimer.Reset(clampRetryAfter(retryAfter))
	}
}

func clampRetryAfter(d time.Duration) time.Duration {
	if d < MinRetryAfter {
		return MinRetryAfter
	}
	return d
}
