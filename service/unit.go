/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component of the service with its own lifecycle
// (the metrics HTTP server, the inbox worker).
type Unit interface {
	// Start runs the unit. It may return right after initialization or block while the unit is running.
	// A failure is reported by writing to fatalErr, which must not be used after Start returns.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start failed or was never called.
	Stop(gracefully bool) error
}

// Finisher is implemented by units that may complete their work on their own,
// e.g. a worker that processes the inbox once. Done is closed after completion.
type Finisher interface {
	Done() <-chan struct{}
}

// MetricsRegisterer is implemented by units that own Prometheus collectors.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
