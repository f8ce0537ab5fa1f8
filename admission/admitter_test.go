/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/log/logtest"
	"github.com/acronis/go-crptapi/testutil"
)

func TestNewAdmitter(t *testing.T) {
	t.Run("sliding log is the exact gate", func(t *testing.T) {
		admitter, err := NewAdmitter(NewDefaultConfig(), GateOpts{})
		require.NoError(t, err)
		gate, ok := admitter.(*Gate)
		require.True(t, ok)
		require.Equal(t, DefaultCapacity, gate.Capacity())
		require.Equal(t, DefaultWindow, gate.Window())
	})

	t.Run("empty algorithm falls back to sliding log", func(t *testing.T) {
		admitter, err := NewAdmitter(&Config{Capacity: 2, Window: time.Second}, GateOpts{})
		require.NoError(t, err)
		require.IsType(t, &Gate{}, admitter)
	})

	t.Run("approximate algorithms", func(t *testing.T) {
		for _, algorithm := range []Algorithm{AlgorithmSlidingWindow, AlgorithmLeakyBucket} {
			logRecorder := logtest.NewRecorder()
			admitter, err := NewAdmitter(
				&Config{Capacity: 2, Window: time.Second, Algorithm: algorithm}, GateOpts{Logger: logRecorder})
			require.NoError(t, err, algorithm)
			require.IsType(t, &limiterAdmitter{}, admitter)
			_, found := logRecorder.FindEntry("approximate admission algorithm is used")
			require.True(t, found)
		}
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := NewAdmitter(&Config{Capacity: 1, Window: time.Second, Algorithm: "fixedWindow"}, GateOpts{})
		require.ErrorIs(t, err, ErrUnknownAlgorithm)
	})

	t.Run("invalid params", func(t *testing.T) {
		for _, algorithm := range []Algorithm{AlgorithmSlidingLog, AlgorithmSlidingWindow, AlgorithmLeakyBucket} {
			_, err := NewAdmitter(&Config{Capacity: 0, Window: time.Second, Algorithm: algorithm}, GateOpts{})
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), algorithm)
			require.Equal(t, "capacity", cfgErr.Param)
		}
	})
}

func TestLimiterAdmitter_Acquire(t *testing.T) {
	metrics := NewPrometheusMetrics()
	admitter, err := NewAdmitter(
		&Config{Capacity: 2, Window: time.Minute, Algorithm: AlgorithmLeakyBucket},
		GateOpts{Name: "bucket", MetricsCollector: metrics})
	require.NoError(t, err)

	require.NoError(t, admitter.Acquire(context.Background()))
	require.NoError(t, admitter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = admitter.Acquire(ctx)
	var canceledErr *CanceledError
	require.True(t, errors.As(err, &canceledErr))
	require.ErrorIs(t, err, context.DeadlineExceeded)

	testutil.RequireSamplesCountInCounter(t, metrics.GrantsTotal.WithLabelValues("bucket"), 2)
	testutil.RequireSamplesCountInCounter(t, metrics.CancellationsTotal.WithLabelValues("bucket"), 1)
}

func TestLimiterAdmitter_SlidingWindowAcquire(t *testing.T) {
	admitter, err := NewAdmitter(
		&Config{Capacity: 2, Window: time.Minute, Algorithm: AlgorithmSlidingWindow}, GateOpts{})
	require.NoError(t, err)

	require.NoError(t, admitter.Acquire(context.Background()))
	require.NoError(t, admitter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	var canceledErr *CanceledError
	require.ErrorAs(t, admitter.Acquire(ctx), &canceledErr)
}
