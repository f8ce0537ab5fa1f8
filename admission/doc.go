/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package admission provides a blocking admission gate that allows at most N operations
// within any rolling time window of length T.
//
// Gate keeps the timestamps of admissions granted during the last window (a sliding log).
// Acquire blocks until granting one more admission keeps the bound, records it and returns.
// A granted admission is never refunded, whatever the caller does with it afterwards.
//
//	gate, err := admission.New(5, time.Second)
//	if err != nil {
//		return err
//	}
//	if err = gate.Acquire(ctx); err != nil {
//		return err // *admission.CanceledError
//	}
//	// Exactly one rate-limited action here.
//
// NewAdmitter builds the gate (or one of the approximate algorithms) from Config.
package admission
