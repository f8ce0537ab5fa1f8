/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newBufferedLogger(cfg *Config) (FieldLogger, *bytes.Buffer, CloseFunc) {
	buf := &bytes.Buffer{}
	logger, closeFunc := newLoggerWithAppender(cfg, makeLogfAppenderWithWriter(cfg, buf))
	return logger, buf, closeFunc
}

func TestLogger_JSON(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = LevelInfo
	logger, buf, closeFunc := newBufferedLogger(cfg)

	logger.Debug("skipped")
	logger.With(String("gate", "crpt")).Info("admission granted",
		Int("active", 3), DurationIn(1500*time.Millisecond, time.Millisecond))
	logger.Error("submission failed", Error(errors.New("Authorization: Bearer secret\r\n")))
	closeFunc()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "admission granted", first["msg"])
	require.Equal(t, "info", first["level"])
	require.Equal(t, "crpt", first["gate"])
	require.EqualValues(t, 3, first["active"])
	require.EqualValues(t, 1500, first["duration"])
	require.EqualValues(t, os.Getpid(), first["pid"])
	require.Contains(t, first, "time")

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "error", second["level"])
	require.Equal(t, "Authorization: ***\r\n", second["error"])
}

func TestLogger_Text(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = FormatText
	cfg.NoColor = true
	cfg.Level = LevelDebug
	logger, buf, closeFunc := newBufferedLogger(cfg)

	logger.Debug("waiting for a free slot", Duration("wait", 250*time.Millisecond))
	closeFunc()

	require.Contains(t, buf.String(), "waiting for a free slot")
}

func TestLogger_WithLevel(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = LevelDebug
	logger, buf, closeFunc := newBufferedLogger(cfg)

	warnLogger := logger.WithLevel(LevelWarn)
	warnLogger.Info("dropped")
	warnLogger.Warn("gate saturated", String("gate", "crpt"))
	var called bool
	warnLogger.AtLevel(LevelDebug, func(LogFunc) { called = true })
	closeFunc()

	require.False(t, called)
	require.NotContains(t, buf.String(), "dropped")
	require.Contains(t, buf.String(), `"gate":"crpt"`)
}

func TestLogger_MaskingDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Masking.Enabled = false
	logger, buf, closeFunc := newBufferedLogger(cfg)

	logger.Info("token=abc")
	closeFunc()

	require.Contains(t, buf.String(), "token=abc")
}

func TestLogger_FileOutput(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputFile
	cfg.File.Path = filepath.Join(t.TempDir(), "crpt-{{pid}}.log")
	logger, closeFunc := NewLogger(cfg)

	logger.Info("document created", String("doc_id", "42"))
	closeFunc()

	data, err := os.ReadFile(resolvePlaceholders(cfg.File.Path))
	require.NoError(t, err)
	require.Contains(t, string(data), `"doc_id":"42"`)
}

func TestResolvePlaceholders(t *testing.T) {
	got := resolvePlaceholders("/var/log/{{pid}}/{{starttime}}.log")
	require.True(t, strings.HasPrefix(got, "/var/log/"+strconv.Itoa(os.Getpid())+"/"))
	require.NotContains(t, got, "{{")
}

func TestNewDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	require.NotPanics(t, func() {
		logger.With(String("k", "v")).Error("nothing", Int("n", 1))
	})
}
