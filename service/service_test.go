/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-crptapi/log/logtest"
)

func startService(ctx context.Context, s *Service) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.StartContext(ctx) }()
	return errCh
}

func waitServiceErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(3 * time.Second):
		require.Fail(t, "service did not stop")
		return nil
	}
}

func TestService_StopBySignal(t *testing.T) {
	var running atomic.Int32
	unit := newMockUnit("srv", &running)
	logger := logtest.NewRecorder()
	s := New(logger, unit)

	errCh := startService(context.Background(), s)
	require.Eventually(t, func() bool { return running.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), unit.registerCalled.Load())

	s.Signals <- os.Interrupt

	require.NoError(t, waitServiceErr(t, errCh))
	require.Eventually(t, func() bool { return running.Load() == 0 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), unit.gracefulStops.Load())
	require.Equal(t, int32(1), unit.unregCalled.Load())
	_, found := logger.FindEntry("service got signal, stopping")
	require.True(t, found)
}

func TestService_StopByContext(t *testing.T) {
	var running atomic.Int32
	unit := newMockUnit("srv", &running)
	s := NewWithOpts(logtest.NewRecorder(), unit, Opts{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := startService(ctx, s)
	require.Eventually(t, func() bool { return running.Load() == 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()

	require.NoError(t, waitServiceErr(t, errCh))
	require.Equal(t, int32(1), unit.gracefulStops.Load())
}

func TestService_StopWhenUnitCompletes(t *testing.T) {
	var runs atomic.Int32
	unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
		runs.Inc()
		return nil
	}))
	logger := logtest.NewRecorder()
	s := NewWithOpts(logger, unit, Opts{})

	require.NoError(t, waitServiceErr(t, startService(context.Background(), s)))
	require.Equal(t, int32(1), runs.Load())
	_, found := logger.FindEntry("service unit completed its work, stopping")
	require.True(t, found)
}

func TestService_FatalError(t *testing.T) {
	errInbox := errors.New("read inbox directory: permission denied")
	unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
		return errInbox
	}))
	s := NewWithOpts(logtest.NewRecorder(), unit, Opts{})

	err := waitServiceErr(t, startService(context.Background(), s))
	require.ErrorIs(t, err, errInbox)
}
