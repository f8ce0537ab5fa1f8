/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-crptapi/internal/ratelimit"
	"github.com/acronis/go-crptapi/log"
)

// NewAdmitter builds the admitter selected by cfg.Algorithm.
// Only AlgorithmSlidingLog (the Gate) guarantees that no window of length cfg.Window
// ever contains more than cfg.Capacity admissions.
func NewAdmitter(cfg *Config, opts GateOpts) (Admitter, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if algorithm == AlgorithmSlidingLog {
		return NewWithOpts(cfg.Capacity, cfg.Window, opts)
	}

	if cfg.Capacity < 1 {
		return nil, &ConfigError{Param: "capacity", Value: cfg.Capacity}
	}
	if cfg.Window <= 0 {
		return nil, &ConfigError{Param: "window", Value: cfg.Window}
	}
	rate := ratelimit.Rate{Count: cfg.Capacity, Duration: cfg.Window}

	var limiter ratelimit.Limiter
	var err error
	switch algorithm {
	case AlgorithmSlidingWindow:
		limiter, err = ratelimit.NewSlidingWindowLimiter(rate)
	case AlgorithmLeakyBucket:
		limiter, err = ratelimit.NewLeakyBucketLimiter(rate, cfg.Capacity-1)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	if err != nil {
		return nil, fmt.Errorf("new %s limiter: %w", algorithm, err)
	}

	if opts.Name == "" {
		opts.Name = DefaultGateName
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = disabledMetrics{}
	}
	opts.Logger.Info("approximate admission algorithm is used",
		log.String("gate", opts.Name), log.String("algorithm", string(algorithm)), log.String("rate", rate.String()))

	return &limiterAdmitter{waiter: ratelimit.NewWaiter(limiter), name: opts.Name, metrics: opts.MetricsCollector}, nil
}

// limiterAdmitter adapts a blocking ratelimit.Waiter to the Admitter contract.
type limiterAdmitter struct {
	waiter  *ratelimit.Waiter
	name    string
	metrics MetricsCollector
}

func (a *limiterAdmitter) Acquire(ctx context.Context) error {
	startTime := time.Now()
	if err := a.waiter.Acquire(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.metrics.IncCancellations(a.name)
			return &CanceledError{Inner: err}
		}
		return err
	}
	a.metrics.ObserveGrant(a.name, time.Since(startTime))
	return nil
}
