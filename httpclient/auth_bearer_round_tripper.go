/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/acronis/go-crptapi/log"
)

// AuthBearerRoundTripperError is returned by AuthBearerRoundTripper when a token cannot be obtained
// or the request cannot be prepared for the repeated attempt.
type AuthBearerRoundTripperError struct {
	Inner error
}

func (e *AuthBearerRoundTripperError) Error() string {
	return fmt.Sprintf("auth bearer round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *AuthBearerRoundTripperError) Unwrap() error {
	return e.Inner
}

// AuthProvider provides tokens for bearer authorization.
type AuthProvider interface {
	GetToken(ctx context.Context, scope ...string) (string, error)
}

// AuthProviderFunc is an adapter to allow the use of ordinary functions as AuthProvider.
type AuthProviderFunc func(ctx context.Context, scope ...string) (string, error)

// GetToken implements AuthProvider.
func (f AuthProviderFunc) GetToken(ctx context.Context, scope ...string) (string, error) {
	return f(ctx, scope...)
}

// TokenInvalidator may be implemented by AuthProvider.
// After a 401 response the token is invalidated and, if a different token is obtained,
// the request is sent once more.
type TokenInvalidator interface {
	Invalidate()
}

// ErrEmptyToken is returned by StaticTokenProvider when no token is configured.
var ErrEmptyToken = errors.New("token is empty")

// StaticTokenProvider always returns the same token.
type StaticTokenProvider string

// GetToken implements AuthProvider.
func (p StaticTokenProvider) GetToken(_ context.Context, _ ...string) (string, error) {
	if p == "" {
		return "", ErrEmptyToken
	}
	return string(p), nil
}

// AuthBearerRoundTripperOpts is options for AuthBearerRoundTripper.
type AuthBearerRoundTripperOpts struct {
	TokenScope []string
	Logger     log.FieldLogger
}

// AuthBearerRoundTripper implements http.RoundTripper interface
// and sets Authorization HTTP header in all outgoing requests.
type AuthBearerRoundTripper struct {
	Delegate     http.RoundTripper
	AuthProvider AuthProvider
	opts         AuthBearerRoundTripperOpts
}

// NewAuthBearerRoundTripper creates a new AuthBearerRoundTripper.
func NewAuthBearerRoundTripper(delegate http.RoundTripper, authProvider AuthProvider) *AuthBearerRoundTripper {
	return NewAuthBearerRoundTripperWithOpts(delegate, authProvider, AuthBearerRoundTripperOpts{})
}

// NewAuthBearerRoundTripperWithOpts creates a new AuthBearerRoundTripper with options.
func NewAuthBearerRoundTripperWithOpts(
	delegate http.RoundTripper, authProvider AuthProvider, opts AuthBearerRoundTripperOpts,
) *AuthBearerRoundTripper {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	return &AuthBearerRoundTripper{Delegate: delegate, AuthProvider: authProvider, opts: opts}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *AuthBearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return rt.Delegate.RoundTrip(req)
	}

	if req.Body != nil {
		originalReqBody := req.Body
		defer func() {
			_ = originalReqBody.Close() // Per RoundTripper contract.
		}()
	}

	invalidator, canRefresh := rt.AuthProvider.(TokenInvalidator)
	rewindReqBody := func(*http.Request) error { return nil }
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	if canRefresh && req.Body != nil {
		var err error
		if rewindReqBody, err = makeRequestBodyRewindable(req); err != nil {
			return nil, &AuthBearerRoundTripperError{Inner: err}
		}
	}

	token, err := rt.getToken(req)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := rt.Delegate.RoundTrip(req)
	if err != nil || !canRefresh || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	invalidator.Invalidate()
	newToken, tokenErr := rt.getToken(req)
	if tokenErr != nil {
		rt.opts.Logger.Error("failed to refresh token after unauthorized response", log.Error(tokenErr))
		return resp, nil
	}
	if newToken == token {
		return resp, nil
	}
	if rewindErr := rewindReqBody(req); rewindErr != nil {
		rt.opts.Logger.Error("failed to rewind request body after unauthorized response", log.Error(rewindErr))
		return resp, nil
	}
	drainResponseBody(resp, rt.opts.Logger)
	req.Header.Set("Authorization", "Bearer "+newToken)
	return rt.Delegate.RoundTrip(req)
}

func (rt *AuthBearerRoundTripper) getToken(req *http.Request) (string, error) {
	token, err := rt.AuthProvider.GetToken(req.Context(), rt.opts.TokenScope...)
	if err != nil {
		return "", &AuthBearerRoundTripperError{Inner: err}
	}
	return token, nil
}
