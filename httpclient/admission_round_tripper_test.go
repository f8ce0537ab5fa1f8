/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-crptapi/admission"
)

type admitterFunc func(ctx context.Context) error

func (f admitterFunc) Acquire(ctx context.Context) error {
	return f(ctx)
}

type closeTrackingBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *closeTrackingBody) Close() error {
	b.closed.Store(true)
	return nil
}

func TestAdmissionRoundTripper_RoundTrip(t *testing.T) {
	var reqsNum atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		reqsNum.Inc()
		rw.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	t.Run("each request consumes one admission", func(t *testing.T) {
		reqsNum.Store(0)
		const window = 150 * time.Millisecond
		gate := admission.MustNew(2, window)
		client := &http.Client{Transport: NewAdmissionRoundTripper(http.DefaultTransport, gate)}

		startTime := time.Now()
		for i := 0; i < 3; i++ {
			resp, err := client.Get(server.URL)
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
		}
		require.GreaterOrEqual(t, time.Since(startTime), window-10*time.Millisecond)
		require.Equal(t, int32(3), reqsNum.Load())
		require.LessOrEqual(t, gate.Active(), 2)
	})

	t.Run("wait timeout", func(t *testing.T) {
		reqsNum.Store(0)
		gate := admission.MustNew(1, time.Hour)
		require.NoError(t, gate.Acquire(context.Background()))
		rt := NewAdmissionRoundTripperWithOpts(http.DefaultTransport, gate, AdmissionRoundTripperOpts{
			WaitTimeout: 20 * time.Millisecond,
		})

		body := &closeTrackingBody{Reader: strings.NewReader(`{}`)}
		req, err := http.NewRequest(http.MethodPost, server.URL, body)
		require.NoError(t, err)
		resp, err := rt.RoundTrip(req)
		require.Nil(t, resp)

		var waitErr *AdmissionWaitError
		require.ErrorAs(t, err, &waitErr)
		var canceledErr *admission.CanceledError
		require.ErrorAs(t, err, &canceledErr)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.True(t, body.closed.Load())
		require.Zero(t, reqsNum.Load())
	})

	t.Run("request context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var acquireCalls atomic.Int32
		rt := NewAdmissionRoundTripper(http.DefaultTransport, admitterFunc(func(ctx context.Context) error {
			acquireCalls.Inc()
			return ctx.Err()
		}))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		_, err = rt.RoundTrip(req) //nolint:bodyclose
		require.True(t, errors.Is(err, context.Canceled))
		require.Equal(t, int32(1), acquireCalls.Load())
	})
}

func TestAdmissionWaitError(t *testing.T) {
	inner := errors.New("boom")
	err := &AdmissionWaitError{Inner: inner}
	require.Equal(t, "wait for admission: boom", err.Error())
	require.ErrorIs(t, err, inner)
}
