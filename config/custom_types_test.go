/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var errTest = errors.New("test error")

func TestByteSize_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		yaml    string
		want    ByteSize
		wantErr bool
	}{
		{name: "integer", json: `1024`, yaml: `size: 1024`, want: 1024},
		{name: "human-readable", json: `"10M"`, yaml: `size: 10M`, want: 10 * 1024 * 1024},
		{name: "k8s suffix", json: `"1Gi"`, yaml: `size: 1Gi`, want: 1024 * 1024 * 1024},
		{name: "invalid", json: `"ten megabytes"`, yaml: `size: ten megabytes`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fromJSON ByteSize
			jsonErr := json.Unmarshal([]byte(tt.json), &fromJSON)

			var fromYAML struct{ Size ByteSize }
			yamlErr := yaml.Unmarshal([]byte(tt.yaml), &fromYAML)

			if tt.wantErr {
				require.Error(t, jsonErr)
				require.Error(t, yamlErr)
				return
			}
			require.NoError(t, jsonErr)
			require.NoError(t, yamlErr)
			require.Equal(t, tt.want, fromJSON)
			require.Equal(t, tt.want, fromYAML.Size)
		})
	}
}

func TestByteSize_Marshal(t *testing.T) {
	data, err := json.Marshal(ByteSize(5 * 1024 * 1024))
	require.NoError(t, err)
	require.Equal(t, `"5M"`, string(data))

	data, err = yaml.Marshal(ByteSize(1024))
	require.NoError(t, err)
	require.Equal(t, "1K\n", string(data))
}

func TestTimeDuration_Unmarshal(t *testing.T) {
	var d TimeDuration
	require.NoError(t, json.Unmarshal([]byte(`"1m30s"`), &d))
	require.Equal(t, TimeDuration(90*time.Second), d)

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	require.Equal(t, TimeDuration(time.Microsecond), d)

	require.Error(t, json.Unmarshal([]byte(`-5`), &d))
	require.Error(t, json.Unmarshal([]byte(`"soon"`), &d))

	var cfg struct {
		Window TimeDuration `yaml:"window"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("window: 250ms"), &cfg))
	require.Equal(t, TimeDuration(250*time.Millisecond), cfg.Window)
	require.Equal(t, "250ms", cfg.Window.String())
}
