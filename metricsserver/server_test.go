/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package metricsserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-crptapi/log/logtest"
	"github.com/acronis/go-crptapi/testutil"
)

func startServer(t *testing.T, opts Opts) (*MetricsServer, *logtest.Recorder, chan error) {
	t.Helper()
	addr := testutil.GetLocalAddrWithFreeTCPPort()
	logRecorder := logtest.NewRecorder()
	srv := NewWithOpts(&Config{Enabled: true, Address: addr}, logRecorder, opts)
	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	require.NoError(t, testutil.WaitListeningServer(addr, 3*time.Second))
	return srv, logRecorder, fatalErr
}

func doGet(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestMetricsServer_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	grants := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_admission_grants_total"})
	registry.MustRegister(grants)
	grants.Add(3)

	srv, logRecorder, fatalErr := startServer(t, Opts{Gatherer: registry})
	defer func() {
		require.NoError(t, srv.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()

	status, body := doGet(t, srv.URL+MetricsPath)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(body), "test_admission_grants_total 3")

	var entry logtest.RecordedEntry
	require.Eventually(t, func() bool {
		var found bool
		entry, found = logRecorder.FindEntry("response completed")
		return found
	}, time.Second, 10*time.Millisecond)
	statusField, found := entry.FindField("status")
	require.True(t, found)
	require.EqualValues(t, http.StatusOK, statusField.Int)
	reqIDField, found := entry.FindField("request_id")
	require.True(t, found)
	require.NotEmpty(t, string(reqIDField.Bytes))
}

func TestMetricsServer_HealthCheck(t *testing.T) {
	inboxStatus := atomic.NewInt32(int32(HealthCheckStatusOK))
	checkErr := atomic.NewError(nil)
	srv, _, fatalErr := startServer(t, Opts{HealthCheck: func(ctx context.Context) (HealthCheckResult, error) {
		return HealthCheckResult{
			"inbox":     HealthCheckStatus(inboxStatus.Load()),
			"admission": HealthCheckStatusOK,
		}, checkErr.Load()
	}})
	defer func() {
		require.NoError(t, srv.Stop(false))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()

	status, body := doGet(t, srv.URL+HealthCheckPath)
	require.Equal(t, http.StatusOK, status)
	var respData healthCheckResponseData
	require.NoError(t, json.Unmarshal(body, &respData))
	require.Equal(t, map[string]bool{"inbox": true, "admission": true}, respData.Components)

	inboxStatus.Store(int32(HealthCheckStatusFail))
	status, body = doGet(t, srv.URL+HealthCheckPath)
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.NoError(t, json.Unmarshal(body, &respData))
	require.Equal(t, map[string]bool{"inbox": false, "admission": true}, respData.Components)

	checkErr.Store(errors.New("stat inbox: permission denied"))
	status, _ = doGet(t, srv.URL+HealthCheckPath)
	require.Equal(t, http.StatusInternalServerError, status)
}

func TestMetricsServer_DefaultHealthCheck(t *testing.T) {
	srv, _, fatalErr := startServer(t, Opts{})
	defer func() {
		require.NoError(t, srv.Stop(true))
		testutil.RequireNoErrorInChannel(t, fatalErr)
	}()

	status, body := doGet(t, srv.URL+HealthCheckPath)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"components":{}}`, string(body))

	status, _ = doGet(t, srv.URL+"/unknown")
	require.Equal(t, http.StatusNotFound, status)
}

func TestMetricsServer_ListenError(t *testing.T) {
	srv, _, fatalErr := startServer(t, Opts{})
	defer func() {
		require.NoError(t, srv.Stop(true))
	}()

	busy := NewWithOpts(&Config{Enabled: true, Address: srv.HTTPServer.Addr}, nil, Opts{})
	busyErr := make(chan error, 1)
	busy.Start(busyErr)
	require.Error(t, <-busyErr)
	testutil.RequireNoErrorInChannel(t, fatalErr)
}
