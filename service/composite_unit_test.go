/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type mockUnit struct {
	name           string
	running        *atomic.Int32
	stop           chan struct{}
	stopErr        error
	startErr       error
	startCalled    atomic.Int32
	stopCalled     atomic.Int32
	gracefulStops  atomic.Int32
	registerCalled atomic.Int32
	unregCalled    atomic.Int32
}

func newMockUnit(name string, running *atomic.Int32) *mockUnit {
	return &mockUnit{name: name, running: running, stop: make(chan struct{}, 1)}
}

func (u *mockUnit) Start(fatalError chan<- error) {
	u.startCalled.Inc()
	if u.startErr != nil {
		fatalError <- u.startErr
		return
	}
	u.running.Inc()
	<-u.stop
	u.running.Dec()
}

func (u *mockUnit) Stop(gracefully bool) error {
	u.stopCalled.Inc()
	if gracefully {
		u.gracefulStops.Inc()
	}
	select {
	case u.stop <- struct{}{}:
	default:
	}
	return u.stopErr
}

func (u *mockUnit) MustRegisterMetrics() { u.registerCalled.Inc() }

func (u *mockUnit) UnregisterMetrics() { u.unregCalled.Inc() }

func makeMockUnits(n int, running *atomic.Int32) ([]*mockUnit, []Unit) {
	mocks := make([]*mockUnit, 0, n)
	units := make([]Unit, 0, n)
	for i := 0; i < n; i++ {
		m := newMockUnit(fmt.Sprintf("unit#%d", i), running)
		mocks = append(mocks, m)
		units = append(units, m)
	}
	return mocks, units
}

func TestCompositeUnit_StartStop(t *testing.T) {
	const unitsNum = 20
	var running atomic.Int32
	mocks, units := makeMockUnits(unitsNum, &running)
	for i := 0; i < unitsNum/2; i++ {
		mocks[i].stopErr = fmt.Errorf("%s: stop failed", mocks[i].name)
	}
	cu := NewCompositeUnit(units...)

	startReturned := make(chan struct{})
	go func() {
		defer close(startReturned)
		cu.Start(make(chan error, 1))
	}()
	require.Eventually(t, func() bool { return running.Load() == unitsNum }, 3*time.Second, 10*time.Millisecond)

	err := cu.Stop(true)
	var cuErr *CompositeUnitError
	require.ErrorAs(t, err, &cuErr)
	require.Len(t, cuErr.UnitErrors, unitsNum/2)

	select {
	case <-startReturned:
	case <-time.After(3 * time.Second):
		require.Fail(t, "Start did not return after Stop")
	}
	require.Zero(t, running.Load())
	for _, m := range mocks {
		require.Equal(t, int32(1), m.gracefulStops.Load())
	}
}

func TestCompositeUnit_StartFailure(t *testing.T) {
	var running atomic.Int32
	mocks, units := makeMockUnits(3, &running)
	errListen := errors.New("listen tcp :9090: address already in use")
	mocks[0].startErr = errListen
	cu := NewCompositeUnit(units...)

	fatalErr := make(chan error, 1)
	go cu.Start(fatalErr)

	select {
	case err := <-fatalErr:
		require.ErrorIs(t, err, errListen)
	case <-time.After(3 * time.Second):
		require.Fail(t, "no fatal error")
	}
	for _, m := range mocks[1:] {
		require.Equal(t, int32(1), m.stopCalled.Load())
		require.Zero(t, m.gracefulStops.Load())
	}
}

func TestCompositeUnit_Done(t *testing.T) {
	t.Run("closed when all finishers are done", func(t *testing.T) {
		var running atomic.Int32
		release := make(chan struct{})
		worker := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-release
			return nil
		}))
		server := newMockUnit("metrics server", &running)
		cu := NewCompositeUnit(server, worker)
		go cu.Start(make(chan error, 1))

		select {
		case <-cu.Done():
			require.Fail(t, "composite unit is done before the worker")
		case <-time.After(50 * time.Millisecond):
		}
		close(release)
		select {
		case <-cu.Done():
		case <-time.After(3 * time.Second):
			require.Fail(t, "composite unit is not done")
		}
		require.NoError(t, cu.Stop(true))
	})

	t.Run("never closed without finishers", func(t *testing.T) {
		var running atomic.Int32
		_, units := makeMockUnits(2, &running)
		cu := NewCompositeUnit(units...)
		select {
		case <-cu.Done():
			require.Fail(t, "composite unit without finishers must not be done")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestCompositeUnit_Metrics(t *testing.T) {
	var running atomic.Int32
	mocks, units := makeMockUnits(3, &running)
	cu := NewCompositeUnit(units...)
	cu.MustRegisterMetrics()
	cu.UnregisterMetrics()
	for _, m := range mocks {
		require.Equal(t, int32(1), m.registerCalled.Load())
		require.Equal(t, int32(1), m.unregCalled.Load())
	}
}
