/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-crptapi/log"
)

// DefaultGateName is used in logs and metrics when GateOpts.Name is empty.
const DefaultGateName = "default"

const saturationWarnInterval = time.Second

// Admitter grants admissions. Acquire blocks until an admission is granted or ctx is done.
type Admitter interface {
	Acquire(ctx context.Context) error
}

// GateOpts represents options for the Gate.
type GateOpts struct {
	// Name identifies the gate in logs and metrics.
	Name string

	// Logger is used for reporting saturation and grants. Disabled if nil.
	Logger log.FieldLogger

	// MetricsCollector collects admission statistics. Disabled if nil.
	MetricsCollector MetricsCollector
}

// Gate is a sliding-log admission gate: at most capacity admissions are granted
// within any window of length window.
//
// Every attempt evicts expired timestamps and checks the free room under one mutex,
// so the bound holds for any number of concurrent callers.
// Blocked callers are not served in FIFO order.
type Gate struct {
	capacity int
	window   time.Duration
	name     string
	logger   log.FieldLogger
	metrics  MetricsCollector

	mu  sync.Mutex
	log timestampQueue

	saturationWarn rate.Sometimes

	// onGrant is called under mu with the recorded timestamp of every granted admission.
	onGrant func(ts time.Time, active int)
}

var _ Admitter = (*Gate)(nil)

// New creates a Gate granting at most capacity admissions per window.
func New(capacity int, window time.Duration) (*Gate, error) {
	return NewWithOpts(capacity, window, GateOpts{})
}

// NewWithOpts creates a Gate granting at most capacity admissions per window with the given options.
// It returns *ConfigError if capacity < 1 or window <= 0.
func NewWithOpts(capacity int, window time.Duration, opts GateOpts) (*Gate, error) {
	if capacity < 1 {
		return nil, &ConfigError{Param: "capacity", Value: capacity}
	}
	if window <= 0 {
		return nil, &ConfigError{Param: "window", Value: window}
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
	return &Gate{
		capacity:       capacity,
		window:         window,
		name:           opts.Name,
		logger:         opts.Logger,
		metrics:        opts.MetricsCollector,
		log:            newTimestampQueue(capacity),
		saturationWarn: rate.Sometimes{Interval: saturationWarnInterval},
	}, nil
}

// MustNew is like New but panics on invalid parameters.
func MustNew(capacity int, window time.Duration) *Gate {
	g, err := New(capacity, window)
	if err != nil {
		panic(err)
	}
	return g
}

// Capacity returns the maximum number of admissions per window.
func (g *Gate) Capacity() int {
	return g.capacity
}

// Window returns the window duration.
func (g *Gate) Window() time.Duration {
	return g.window
}

// Name returns the gate name used in logs and metrics.
func (g *Gate) Name() string {
	return g.name
}

// Active returns the number of admissions granted within the last window.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.log.EvictExpired(time.Now(), g.window)
	return g.log.Len()
}

// Acquire blocks until an admission can be granted without exceeding the capacity
// within the window, records it and returns nil.
// If ctx is done first, Acquire returns *CanceledError and records nothing.
func (g *Gate) Acquire(ctx context.Context) error {
	startTime := time.Now()
	if err := ctx.Err(); err != nil {
		g.metrics.IncCancellations(g.name)
		return &CanceledError{Inner: err}
	}

	var timer *time.Timer
	waiting := false
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if waiting {
			g.metrics.DecWaiting(g.name)
		}
	}()

	for {
		granted, wait := g.attempt()
		if granted {
			waited := time.Since(startTime)
			g.metrics.ObserveGrant(g.name, waited)
			if waiting {
				g.logger.Debug("admission granted after wait",
					log.String("gate", g.name), log.Duration("waited", waited))
			}
			return nil
		}

		if !waiting {
			waiting = true
			g.metrics.IncWaiting(g.name)
			g.warnSaturated(wait)
		}

		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		select {
		case <-ctx.Done():
			g.metrics.IncCancellations(g.name)
			return &CanceledError{Inner: ctx.Err()}
		case <-timer.C:
		}
	}
}

// TryAcquire makes a single non-blocking attempt.
// When denied, retryAfter is the time until the oldest admission leaves the window.
func (g *Gate) TryAcquire() (ok bool, retryAfter time.Duration) {
	ok, retryAfter = g.attempt()
	if ok {
		g.metrics.ObserveGrant(g.name, 0)
	}
	return ok, retryAfter
}

// Allow is TryAcquire with the signature of a non-blocking rate limiter.
func (g *Gate) Allow(ctx context.Context) (allow bool, retryAfter time.Duration, err error) {
	if err = ctx.Err(); err != nil {
		return false, 0, err
	}
	allow, retryAfter = g.TryAcquire()
	return allow, retryAfter, nil
}

// attempt is one check-and-grant step executed atomically:
// evict expired entries, grant if there is room, otherwise report how long to wait.
// The clock is read under the lock to keep the log ordered oldest-first.
// The returned wait is always positive when the attempt is denied.
func (g *Gate) attempt() (granted bool, wait time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.log.EvictExpired(now, g.window)
	if !g.log.Full() {
		g.log.Push(now)
		if g.onGrant != nil {
			g.onGrant(now, g.log.Len())
		}
		return true, 0
	}
	return false, g.window - now.Sub(g.log.Oldest())
}

func (g *Gate) warnSaturated(wait time.Duration) {
	g.saturationWarn.Do(func() {
		g.logger.Warn("admission gate is saturated, callers are waiting for a free slot",
			log.String("gate", g.name),
			log.Int("capacity", g.capacity),
			log.Duration("window", g.window),
			log.Duration("wait", wait),
		)
	})
}
