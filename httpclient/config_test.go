/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/config"
)

func loadConfig(data string, keyPrefix string) (*Config, error) {
	cfg := NewConfigWithKeyPrefix(keyPrefix)
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(data), config.DataTypeYAML, cfg)
	return cfg, err
}

func TestConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(`{}`, "")
	require.NoError(t, err)

	want := NewDefaultConfig()
	want.keyPrefix = ""
	require.Equal(t, want, cfg)
}

func TestConfig_Set(t *testing.T) {
	cfg, err := loadConfig(`
crpt:
  http:
    timeout: 1m
    retries:
      maxAttempts: 5
      policy:
        strategy: Constant
        constantBackoffInterval: 500ms
    logger:
      mode: failed
      slowRequestThreshold: 2s
    metrics:
      enabled: true
    admission:
      waitTimeout: 10s
`, "crpt.http")
	require.NoError(t, err)

	require.Equal(t, time.Minute, cfg.Timeout)
	require.True(t, cfg.Retries.Enabled)
	require.Equal(t, 5, cfg.Retries.MaxAttempts)
	require.Equal(t, RetryPolicyConstant, cfg.Retries.Policy.Strategy)
	require.Equal(t, 500*time.Millisecond, cfg.Retries.Policy.ConstantBackoffInterval)
	require.Equal(t, LoggerConfig{Enabled: true, Mode: LoggingModeFailed, SlowRequestThreshold: 2 * time.Second}, cfg.Logger)
	require.True(t, cfg.Metrics.Enabled)
	require.Equal(t, 10*time.Second, cfg.Admission.WaitTimeout)
}

func TestConfig_Disabled(t *testing.T) {
	cfg, err := loadConfig(`
retries:
  enabled: false
  maxAttempts: -1
logger:
  enabled: false
  mode: bogus
`, "")
	require.NoError(t, err)
	require.False(t, cfg.Retries.Enabled)
	require.False(t, cfg.Logger.Enabled)
}

func TestConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "negative timeout", yaml: `timeout: -1s`, wantErr: "timeout: cannot be negative"},
		{name: "negative max attempts", yaml: `retries: {maxAttempts: -2}`, wantErr: "retries.maxAttempts: cannot be negative"},
		{name: "unknown strategy", yaml: `retries: {policy: {strategy: linear}}`, wantErr: "retries.policy.strategy"},
		{
			name:    "small multiplier",
			yaml:    `retries: {policy: {exponentialBackoffMultiplier: 1}}`,
			wantErr: "retries.policy.exponentialBackoffMultiplier: should be greater than 1",
		},
		{name: "unknown logging mode", yaml: `logger: {mode: verbose}`, wantErr: "logger.mode"},
		{name: "negative wait timeout", yaml: `admission: {waitTimeout: -5s}`, wantErr: "admission.waitTimeout: cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(tt.yaml, "")
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRetriesConfig_GetPolicy(t *testing.T) {
	constant := RetriesConfig{Policy: PolicyConfig{Strategy: RetryPolicyConstant, ConstantBackoffInterval: time.Second}}
	bf := constant.GetPolicy().NewBackOff()
	require.Equal(t, time.Second, bf.NextBackOff())
	require.Equal(t, time.Second, bf.NextBackOff())

	exponential := NewDefaultConfig().Retries
	bf = exponential.GetPolicy().NewBackOff()
	first := bf.NextBackOff()
	require.InDelta(t, float64(DefaultExponentialBackoffInitialInterval), float64(first),
		float64(DefaultExponentialBackoffInitialInterval)/2)
}
