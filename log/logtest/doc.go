/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides log.FieldLogger implementations for tests:
// a JSON logger writing to an arbitrary io.Writer and a Recorder that keeps entries in memory
// so tests can assert on what the gate, the HTTP client and the submitter have logged.
package logtest
