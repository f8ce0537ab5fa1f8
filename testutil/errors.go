/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains helpers for tests: Prometheus metric assertions, error chain checks and network utilities.
package testutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stretchr/testify/require"
)

type tHelper interface {
	Helper()
}

// RequireNoErrorInChannel fails the test if the buffered channel holds an error.
func RequireNoErrorInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	select {
	case err := <-c:
		require.NoError(t, err, msgAndArgs...)
	default:
	}
}

// RequireErrorIsAny fails the test unless errors.Is(err, target) holds for at least one of targets.
func RequireErrorIsAny(t require.TestingT, err error, targets []error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	wanted := make([]string, 0, len(targets))
	for _, target := range targets {
		if errors.Is(err, target) {
			return
		}
		wanted = append(wanted, fmt.Sprintf("%q", target.Error()))
	}
	require.FailNow(t, fmt.Sprintf("none of the target errors is in the chain:\n"+
		"expected one of: [%s]\n"+
		"chain: %s", strings.Join(wanted, "; "), errorChainString(err)), msgAndArgs...)
}

func errorChainString(err error) string {
	var parts []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		parts = append(parts, fmt.Sprintf("%q", e.Error()))
	}
	return strings.Join(parts, " -> ")
}
