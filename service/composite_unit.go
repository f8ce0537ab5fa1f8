/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// CompositeUnit runs several units as one.
type CompositeUnit struct {
	Units []Unit

	doneOnce sync.Once
	done     chan struct{}
}

var _ Finisher = (*CompositeUnit)(nil)

// NewCompositeUnit creates a new composite unit.
func NewCompositeUnit(units ...Unit) *CompositeUnit {
	return &CompositeUnit{Units: units}
}

// Start starts all units concurrently and returns when all their Start calls have returned.
// If any unit fails, the others are stopped non-gracefully and a single *CompositeUnitError
// with all failures is written to fatalError.
func (cu *CompositeUnit) Start(fatalError chan<- error) {
	unitFatalErrs := make([]chan error, len(cu.Units))
	for i := range unitFatalErrs {
		unitFatalErrs[i] = make(chan error, 1)
	}

	results := make(chan bool, len(cu.Units))
	var pending atomic.Int32
	pending.Store(int32(len(cu.Units))) //nolint:gosec // unit count is small
	for i := range cu.Units {
		go func(i int) {
			cu.Units[i].Start(unitFatalErrs[i])
			if len(unitFatalErrs[i]) != 0 {
				results <- false
				return
			}
			if pending.Dec() == 0 {
				results <- true
			}
		}(i)
	}
	if len(cu.Units) == 0 || <-results {
		return
	}

	var errs []error
	stopErr := cu.Stop(false)
	for _, ch := range unitFatalErrs {
		select {
		case err := <-ch:
			errs = append(errs, err)
		default:
		}
	}
	if stopErr != nil {
		errs = append(errs, stopErr.(*CompositeUnitError).UnitErrors...)
	}
	fatalError <- &CompositeUnitError{UnitErrors: errs}
}

// Stop stops all units concurrently and collects their errors into a *CompositeUnitError.
func (cu *CompositeUnit) Stop(gracefully bool) error {
	errs := make([]error, len(cu.Units))
	var wg sync.WaitGroup
	for i, u := range cu.Units {
		wg.Add(1)
		go func(i int, u Unit) {
			defer wg.Done()
			errs[i] = u.Stop(gracefully)
		}(i, u)
	}
	wg.Wait()

	var unitErrs []error
	for _, err := range errs {
		if err != nil {
			unitErrs = append(unitErrs, err)
		}
	}
	if len(unitErrs) != 0 {
		return &CompositeUnitError{UnitErrors: unitErrs}
	}
	return nil
}

// Done is closed when every unit implementing Finisher has finished.
// It is never closed if no unit implements Finisher.
func (cu *CompositeUnit) Done() <-chan struct{} {
	cu.doneOnce.Do(func() {
		cu.done = make(chan struct{})
		var finishers []Finisher
		for _, u := range cu.Units {
			if f, ok := u.(Finisher); ok {
				finishers = append(finishers, f)
			}
		}
		if len(finishers) == 0 {
			return
		}
		go func() {
			for _, f := range finishers {
				<-f.Done()
			}
			close(cu.done)
		}()
	})
	return cu.done
}

// MustRegisterMetrics registers metrics of all units that have them.
func (cu *CompositeUnit) MustRegisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.MustRegisterMetrics()
		}
	}
}

// UnregisterMetrics unregisters metrics of all units that have them.
func (cu *CompositeUnit) UnregisterMetrics() {
	for _, u := range cu.Units {
		if mr, ok := u.(MetricsRegisterer); ok {
			mr.UnregisterMetrics()
		}
	}
}

// CompositeUnitError holds errors of several units.
type CompositeUnitError struct {
	UnitErrors []error
}

func (e *CompositeUnitError) Error() string {
	msgs := make([]string, 0, len(e.UnitErrors))
	for _, err := range e.UnitErrors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Unwrap returns the errors of the units.
func (e *CompositeUnitError) Unwrap() []error {
	return e.UnitErrors
}
