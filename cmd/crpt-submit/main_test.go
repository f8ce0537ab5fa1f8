/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/admission"
	"github.com/acronis/go-crptapi/metricsserver"
)

func TestLoadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
log:
  level: debug
admission:
  capacity: 5
  window: 1m
  algorithm: leakyBucket
crpt:
  endpoint: "http://127.0.0.1:8080/documents/create"
  http:
    timeout: 10s
metricsServer:
  enabled: true
  address: "127.0.0.1:9191"
`), 0o600))

	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Admission.Capacity)
	require.Equal(t, time.Minute, cfg.Admission.Window)
	require.Equal(t, admission.AlgorithmLeakyBucket, cfg.Admission.Algorithm)
	require.Equal(t, "http://127.0.0.1:8080/documents/create", cfg.CRPT.Endpoint)
	require.Equal(t, 10*time.Second, time.Duration(cfg.CRPT.HTTP.Timeout))
	require.True(t, cfg.MetricsServer.Enabled)
	require.Equal(t, "127.0.0.1:9191", cfg.MetricsServer.Address)
}

func TestLoadConfig_InvalidCapacity(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"admission": {"capacity": 0}}`), 0o600))

	_, err := loadConfig(cfgPath)
	require.ErrorContains(t, err, "admission.capacity")
}

func TestInboxHealthCheck(t *testing.T) {
	inbox := t.TempDir()
	check := inboxHealthCheck(inbox)

	result, err := check(context.Background())
	require.NoError(t, err)
	require.Equal(t, metricsserver.HealthCheckResult{"inbox": metricsserver.HealthCheckStatusOK}, result)

	require.NoError(t, os.Remove(inbox))
	result, err = check(context.Background())
	require.NoError(t, err)
	require.Equal(t, metricsserver.HealthCheckResult{"inbox": metricsserver.HealthCheckStatusFail}, result)
}
