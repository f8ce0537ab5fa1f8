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

// Rate describes the frequency of requests: Count requests per Duration.
type Rate struct {
	Count    int
	Duration time.Duration
}

// Validate checks that both Count and Duration are positive.
func (r Rate) Validate() error {
	if r.Count < 1 {
		return fmt.Errorf("rate count should be positive, got %d", r.Count)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("rate duration should be positive, got %s", r.Duration)
	}
	return nil
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Duration)
}

// Limiter makes non-blocking rate limiting decisions.
// When a request is not allowed, retryAfter estimates when the next attempt may succeed.
type Limiter interface {
	Allow(ctx context.Context) (allow bool, retryAfter time.Duration, err error)
}
