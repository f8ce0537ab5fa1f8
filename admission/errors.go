/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"errors"
	"fmt"
)

// ErrUnknownAlgorithm is returned by NewAdmitter for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown admission algorithm")

// ConfigError is returned when a gate is constructed with invalid parameters.
type ConfigError struct {
	Param string
	Value interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid admission gate %s: %v", e.Param, e.Value)
}

// CanceledError is returned by Acquire when the context is done before an admission is granted.
// No admission is recorded in this case.
type CanceledError struct {
	Inner error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("admission wait canceled: %s", e.Inner.Error())
}

// Unwrap returns the context error, so errors.Is(err, context.Canceled) works.
func (e *CanceledError) Unwrap() error {
	return e.Inner
}
