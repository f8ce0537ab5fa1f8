/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-crptapi/log"
)

// LoggingMode represents a mode of logging.
type LoggingMode string

// Logging modes.
const (
	LoggingModeNone   LoggingMode = "none"
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
)

// IsValid checks if the logging mode is valid.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripperOpts represents options for LoggingRoundTripper.
type LoggingRoundTripperOpts struct {
	// RequestType is added to every entry, e.g. "crpt.createDocument".
	RequestType string

	// LoggerProvider is a function that provides a context-specific logger.
	// GetLoggerFromContext is used when it is nil or returns nil.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// Mode of logging: none, all, failed. Empty means all.
	Mode LoggingMode

	// SlowRequestThreshold makes only requests lasting at least this long get logged.
	SlowRequestThreshold time.Duration
}

// LoggingRoundTripper logs every HTTP attempt with its outcome and duration.
type LoggingRoundTripper struct {
	Delegate http.RoundTripper
	opts     LoggingRoundTripperOpts
}

// NewLoggingRoundTripper creates an HTTP transport that logs requests.
func NewLoggingRoundTripper(delegate http.RoundTripper) *LoggingRoundTripper {
	return NewLoggingRoundTripperWithOpts(delegate, LoggingRoundTripperOpts{})
}

// NewLoggingRoundTripperWithOpts creates an HTTP transport that logs requests with options.
func NewLoggingRoundTripperWithOpts(delegate http.RoundTripper, opts LoggingRoundTripperOpts) *LoggingRoundTripper {
	if opts.Mode == "" {
		opts.Mode = LoggingModeAll
	}
	return &LoggingRoundTripper{Delegate: delegate, opts: opts}
}

func (rt *LoggingRoundTripper) getLogger(ctx context.Context) log.FieldLogger {
	if rt.opts.LoggerProvider != nil {
		if l := rt.opts.LoggerProvider(ctx); l != nil {
			return l
		}
	}
	return GetLoggerFromContext(ctx)
}

// RoundTrip executes the request and logs it.
func (rt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.opts.Mode == LoggingModeNone {
		return rt.Delegate.RoundTrip(req)
	}
	logger := rt.getLogger(req.Context())
	if logger == nil {
		return rt.Delegate.RoundTrip(req)
	}

	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(req)
	elapsed := time.Since(start)

	failed := err != nil || (resp != nil && resp.StatusCode >= http.StatusBadRequest)
	if elapsed < rt.opts.SlowRequestThreshold || (rt.opts.Mode == LoggingModeFailed && !failed) {
		return resp, err
	}

	fields := []log.Field{
		log.String("method", req.Method),
		log.String("url", req.URL.String()),
		log.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rt.opts.RequestType != "" {
		fields = append(fields, log.String("request_type", rt.opts.RequestType))
	}
	if requestID := req.Header.Get(RequestIDHeader); requestID != "" {
		fields = append(fields, log.String("request_id", requestID))
	}
	if attempt := req.Header.Get(RetryAttemptNumberHeader); attempt != "" {
		fields = append(fields, log.String("retry_attempt", attempt))
	}
	if resp != nil {
		fields = append(fields, log.Int("status", resp.StatusCode))
	}

	switch {
	case err != nil:
		logger.Error("external request failed", append(fields, log.Error(err))...)
	case resp.StatusCode >= http.StatusInternalServerError:
		logger.Warn("external request done", fields...)
	default:
		logger.Info("external request done", fields...)
	}
	return resp, err
}
