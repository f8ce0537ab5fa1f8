/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/log/logtest"
)

var errTemporary = errors.New("temporary")

func TestDoWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		policy       Policy
		isRetryable  IsRetryable
		failures     int
		fnErr        error
		wantCalls    int
		wantErr      error
		cancelBefore bool
	}{
		{
			name:      "success on first call",
			policy:    NewConstantBackoffPolicy(time.Millisecond, 3),
			wantCalls: 1,
		},
		{
			name:      "success after failures",
			policy:    NewConstantBackoffPolicy(time.Millisecond, 3),
			failures:  2,
			fnErr:     errTemporary,
			wantCalls: 3,
		},
		{
			name:      "max attempts exceeded",
			policy:    NewExponentialBackoffPolicy(time.Millisecond, 2),
			failures:  10,
			fnErr:     errTemporary,
			wantCalls: 3,
			wantErr:   errTemporary,
		},
		{
			name:        "permanent error",
			policy:      NewConstantBackoffPolicy(time.Millisecond, 3),
			isRetryable: func(err error) bool { return !errors.Is(err, context.Canceled) },
			failures:    10,
			fnErr:       context.Canceled,
			wantCalls:   1,
			wantErr:     context.Canceled,
		},
		{
			name:         "context canceled",
			policy:       NewConstantBackoffPolicy(time.Millisecond, 3),
			failures:     10,
			fnErr:        errTemporary,
			wantCalls:    1,
			wantErr:      context.Canceled,
			cancelBefore: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelBefore {
				cancel()
			}
			calls := 0
			err := DoWithRetry(ctx, tt.policy, tt.isRetryable, nil, func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.fnErr
				}
				return nil
			})
			require.Equal(t, tt.wantCalls, calls)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewLogNotify(t *testing.T) {
	logger := logtest.NewRecorder()
	policy := PolicyFunc(func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) })
	calls := 0
	err := DoWithRetry(context.Background(), policy, nil, NewLogNotify(logger, "submission failed, retrying"),
		func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errTemporary
			}
			return nil
		})
	require.NoError(t, err)

	entries := logger.Entries()
	require.Len(t, entries, 2)
	attempt, found := entries[1].FindField("attempt")
	require.True(t, found)
	require.Equal(t, int64(2), attempt.Int)
}

func TestExponentialBackoffPolicy_Multiplier(t *testing.T) {
	bf := ExponentialBackoffPolicy{InitialInterval: 100 * time.Millisecond, Multiplier: 3}.NewBackOff()
	first := bf.NextBackOff()
	second := bf.NextBackOff()
	// Default randomization factor is 0.5.
	require.InDelta(t, 100*time.Millisecond, first, float64(50*time.Millisecond))
	require.InDelta(t, 300*time.Millisecond, second, float64(150*time.Millisecond))
}
