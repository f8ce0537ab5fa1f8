/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// SlidingWindowLimiter implements the sliding window counter algorithm over an in-process window.
type SlidingWindowLimiter struct {
	limiter *slidingwindow.Limiter
	rate    Rate
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(rate Rate) (*SlidingWindowLimiter, error) {
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	// Local windows need no synchronization, their stop func does nothing.
	lim, _ := slidingwindow.NewLimiter(rate.Duration, int64(rate.Count),
		func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	return &SlidingWindowLimiter{limiter: lim, rate: rate}, nil
}

// Allow reports whether one more request fits the rate.
// retryAfter is the time left until the current fixed window ends.
func (l *SlidingWindowLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	if l.limiter.Allow() {
		return true, 0, nil
	}
	now := time.Now()
	return false, now.Truncate(l.rate.Duration).Add(l.rate.Duration).Sub(now), nil
}
