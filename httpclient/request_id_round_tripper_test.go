/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTripper_RoundTrip(t *testing.T) {
	const echoHeader = "X-Echo-Request-ID"
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set(echoHeader, r.Header.Get(RequestIDHeader))
		rw.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	doRequest := func(t *testing.T, rt http.RoundTripper, req *http.Request) string {
		t.Helper()
		resp, err := (&http.Client{Transport: rt}).Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		return resp.Header.Get(echoHeader)
	}

	t.Run("from context", func(t *testing.T) {
		ctx := NewContextWithRequestID(context.Background(), "ctx-request-id")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		require.Equal(t, "ctx-request-id", doRequest(t, NewRequestIDRoundTripper(http.DefaultTransport), req))
		require.Empty(t, req.Header.Get(RequestIDHeader))
	})

	t.Run("already set", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		req.Header.Set(RequestIDHeader, "header-request-id")
		require.Equal(t, "header-request-id", doRequest(t, NewRequestIDRoundTripper(http.DefaultTransport), req))
	})

	t.Run("provider", func(t *testing.T) {
		rt := NewRequestIDRoundTripperWithOpts(http.DefaultTransport, RequestIDRoundTripperOpts{
			RequestIDProvider: func(ctx context.Context) string { return "provided-request-id" },
		})
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		require.Equal(t, "provided-request-id", doRequest(t, rt, req))
	})

	t.Run("generated", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		requestID := doRequest(t, NewRequestIDRoundTripper(http.DefaultTransport), req)
		_, err = xid.FromString(requestID)
		require.NoError(t, err)
	})
}
