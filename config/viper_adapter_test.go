/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testClientConfigYAML = `
crpt:
  endpoint: https://ismp.crpt.ru/api/v3/lk/documents/create
  http:
    timeout: 30s
    retries:
      multiplier: 1.5
  headers: [Signature, X-Request-ID]
log:
  file:
    rotation:
      maxSize: 250M
      maxBackups: 10
`

func TestViperAdapter_Getters(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testClientConfigYAML), DataTypeYAML))

	endpoint, err := va.GetString("crpt.endpoint")
	require.NoError(t, err)
	require.Equal(t, "https://ismp.crpt.ru/api/v3/lk/documents/create", endpoint)

	timeout, err := va.GetDuration("crpt.http.timeout")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, timeout)

	multiplier, err := va.GetFloat64("crpt.http.retries.multiplier")
	require.NoError(t, err)
	require.Equal(t, 1.5, multiplier)

	headers, err := va.GetStringSlice("crpt.headers")
	require.NoError(t, err)
	require.Equal(t, []string{"Signature", "X-Request-ID"}, headers)

	maxSize, err := va.GetByteSize("log.file.rotation.maxSize")
	require.NoError(t, err)
	require.Equal(t, ByteSize(250*1024*1024), maxSize)

	maxBackups, err := va.GetInt("log.file.rotation.maxBackups")
	require.NoError(t, err)
	require.Equal(t, 10, maxBackups)

	unset, err := va.GetDuration("crpt.http.absent")
	require.NoError(t, err)
	require.Zero(t, unset)
	require.False(t, va.IsSet("crpt.http.absent"))
}

func TestViperAdapter_GetByteSize(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    ByteSize
		wantErr bool
	}{
		{name: "integer", value: 2048, want: 2048},
		{name: "float", value: 1024.0, want: 1024},
		{name: "human-readable", value: "1M", want: 1024 * 1024},
		{name: "k8s suffix", value: "2Ki", want: 2048},
		{name: "negative", value: -1, wantErr: true},
		{name: "garbage", value: "many", wantErr: true},
		{name: "unsupported type", value: []int{1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			va := NewViperAdapter()
			va.Set("size", tt.value)
			got, err := va.GetByteSize("size")
			if tt.wantErr {
				require.ErrorContains(t, err, "size: ")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestViperAdapter_UnmarshalKey(t *testing.T) {
	type rotation struct {
		MaxSize    ByteSize `mapstructure:"maxSize"`
		MaxBackups int      `mapstructure:"maxBackups"`
	}

	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testClientConfigYAML), DataTypeYAML))

	var got rotation
	require.NoError(t, va.UnmarshalKey("log.file.rotation", &got, WithTextUnmarshalerHook()))
	require.Equal(t, rotation{MaxSize: 250 * 1024 * 1024, MaxBackups: 10}, got)
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(testClientConfigYAML), DataTypeYAML))

	dp := NewKeyPrefixedDataProvider(NewKeyPrefixedDataProvider(va, "crpt"), "http")
	timeout, err := dp.GetDuration("timeout")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, timeout)

	dp.SetDefault("retries.enabled", true)
	enabled, err := va.GetBool("crpt.http.retries.enabled")
	require.NoError(t, err)
	require.True(t, enabled)

	require.EqualError(t, dp.WrapKeyErr("timeout", errTest), "crpt.http.timeout: test error")
}
