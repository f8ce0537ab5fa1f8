/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/acronis/go-crptapi/admission"
)

// AdmissionRoundTripperOpts represents options for AdmissionRoundTripper.
type AdmissionRoundTripperOpts struct {
	// WaitTimeout bounds a single wait for admission. Zero means only the request context bounds it.
	WaitTimeout time.Duration
}

// AdmissionRoundTripper acquires an admission right before passing the request to the delegate,
// so every HTTP attempt that reaches the transport consumes exactly one admission.
// A consumed admission is not returned even if the request fails.
type AdmissionRoundTripper struct {
	Delegate    http.RoundTripper
	Admitter    admission.Admitter
	WaitTimeout time.Duration
}

// NewAdmissionRoundTripper creates a new AdmissionRoundTripper.
func NewAdmissionRoundTripper(delegate http.RoundTripper, admitter admission.Admitter) *AdmissionRoundTripper {
	return NewAdmissionRoundTripperWithOpts(delegate, admitter, AdmissionRoundTripperOpts{})
}

// NewAdmissionRoundTripperWithOpts creates a new AdmissionRoundTripper with options.
func NewAdmissionRoundTripperWithOpts(
	delegate http.RoundTripper, admitter admission.Admitter, opts AdmissionRoundTripperOpts,
) *AdmissionRoundTripper {
	return &AdmissionRoundTripper{Delegate: delegate, Admitter: admitter, WaitTimeout: opts.WaitTimeout}
}

// RoundTrip waits for an admission and executes a single HTTP transaction.
func (rt *AdmissionRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.acquire(req.Context()); err != nil {
		if req.Body != nil {
			_ = req.Body.Close() // Per RoundTripper contract.
		}
		return nil, &AdmissionWaitError{Inner: err}
	}
	return rt.Delegate.RoundTrip(req)
}

func (rt *AdmissionRoundTripper) acquire(ctx context.Context) error {
	if rt.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.WaitTimeout)
		defer cancel()
	}
	return rt.Admitter.Acquire(ctx)
}

// AdmissionWaitError is returned by AdmissionRoundTripper when no admission was granted.
type AdmissionWaitError struct {
	Inner error
}

func (e *AdmissionWaitError) Error() string {
	return fmt.Sprintf("wait for admission: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *AdmissionWaitError) Unwrap() error {
	return e.Inner
}
