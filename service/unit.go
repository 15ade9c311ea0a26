/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

// Unit is a component of the service with its own lifecycle (HTTP server, background worker).
type Unit interface {
	// Start runs the unit. It may block for the unit's lifetime.
	// A failure is reported by writing to fatalErr once; a successful Start writes nothing.
	Start(fatalErr chan<- error)
	// Stop halts the unit. It may be called even if Start failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is an interface for objects that can register its own metrics.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
