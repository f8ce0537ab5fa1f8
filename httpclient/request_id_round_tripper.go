/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDRoundTripperOpts represents options for RequestIDRoundTripper.
type RequestIDRoundTripperOpts struct {
	// RequestIDProvider returns the request ID for the context.
	// By default, GetRequestIDFromContext is used and a new xid is generated when it returns an empty string.
	RequestIDProvider func(ctx context.Context) string
}

// RequestIDRoundTripper sets X-Request-ID header in all outgoing requests that do not have it.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
	opts     RequestIDRoundTripperOpts
}

// NewRequestIDRoundTripper creates an HTTP transport with X-Request-ID header support.
func NewRequestIDRoundTripper(delegate http.RoundTripper) *RequestIDRoundTripper {
	return NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{})
}

// NewRequestIDRoundTripperWithOpts creates an HTTP transport with X-Request-ID header support and options.
func NewRequestIDRoundTripperWithOpts(delegate http.RoundTripper, opts RequestIDRoundTripperOpts) *RequestIDRoundTripper {
	return &RequestIDRoundTripper{Delegate: delegate, opts: opts}
}

// RoundTrip adds X-Request-ID header to the request.
func (rt *RequestIDRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set(RequestIDHeader, rt.requestID(req.Context()))
	return rt.Delegate.RoundTrip(req)
}

func (rt *RequestIDRoundTripper) requestID(ctx context.Context) string {
	var requestID string
	if rt.opts.RequestIDProvider != nil {
		requestID = rt.opts.RequestIDProvider(ctx)
	} else {
		requestID = GetRequestIDFromContext(ctx)
	}
	if requestID == "" {
		requestID = xid.New().String()
	}
	return requestID
}
