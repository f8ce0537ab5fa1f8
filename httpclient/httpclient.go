/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient builds an http.Client whose transport is a chain of round trippers:
// retries, request ID, User-Agent, bearer authorization, admission gating, metrics and logging.
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acronis/go-crptapi/admission"
	"github.com/acronis/go-crptapi/log"
)

// Opts provides options for NewWithOpts and MustWithOpts functions.
type Opts struct {
	// UserAgent is a user agent string. DefaultUserAgent() is used when empty.
	UserAgent string

	// RequestType is used in logs and metrics, e.g. "crpt.createDocument".
	RequestType string

	// Delegate is the last RoundTripper in the chain. A clone of http.DefaultTransport is used when nil.
	Delegate http.RoundTripper

	// Logger is used by the retrying and authorization round trippers
	// and by the logging one when the request context has no logger.
	Logger log.FieldLogger

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// RequestIDProvider is a function that provides a request ID.
	RequestIDProvider func(ctx context.Context) string

	// Collector is a metrics collector. Metrics are collected only if cfg.Metrics.Enabled is true.
	Collector MetricsCollector

	// Admitter gates every HTTP attempt. No gating if nil.
	Admitter admission.Admitter

	// AuthProvider provides bearer tokens. No Authorization header is set if nil.
	AuthProvider AuthProvider
}

// New creates an HTTP client with the round trippers enabled in cfg.
func New(cfg *Config) (*http.Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// Must is like New but panics if any error occurs.
func Must(cfg *Config) *http.Client {
	client, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// NewWithOpts creates an HTTP client with the round trippers enabled in cfg and opts.
// The chain is (outermost first): retries, request ID, User-Agent, bearer authorization,
// admission, metrics, logging, delegate. Every retry attempt acquires its own admission.
func NewWithOpts(cfg *Config, opts Opts) (*http.Client, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.Logger.Enabled {
		logOpts := cfg.Logger.TransportOpts()
		logOpts.RequestType = opts.RequestType
		logOpts.LoggerProvider = contextLoggerProvider(opts)
		delegate = NewLoggingRoundTripperWithOpts(delegate, logOpts)
	}

	if cfg.Metrics.Enabled && opts.Collector != nil {
		delegate = NewMetricsRoundTripperWithOpts(delegate, MetricsRoundTripperOpts{
			RequestType: opts.RequestType,
			Collector:   opts.Collector,
		})
	}

	if opts.Admitter != nil {
		delegate = NewAdmissionRoundTripperWithOpts(delegate, opts.Admitter, AdmissionRoundTripperOpts{
			WaitTimeout: cfg.Admission.WaitTimeout,
		})
	}

	if opts.AuthProvider != nil {
		delegate = NewAuthBearerRoundTripperWithOpts(delegate, opts.AuthProvider, AuthBearerRoundTripperOpts{
			Logger: opts.Logger,
		})
	}

	delegate = NewUserAgentRoundTripper(delegate, opts.UserAgent)

	delegate = NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{
		RequestIDProvider: opts.RequestIDProvider,
	})

	if cfg.Retries.Enabled {
		retryOpts := cfg.Retries.TransportOpts()
		retryOpts.Logger = opts.Logger
		retryOpts.LoggerProvider = contextLoggerProvider(opts)
		var err error
		if delegate, err = NewRetryableRoundTripperWithOpts(delegate, retryOpts); err != nil {
			return nil, fmt.Errorf("create retryable round tripper: %w", err)
		}
	}

	return &http.Client{Transport: delegate, Timeout: cfg.Timeout}, nil
}

// MustWithOpts is like NewWithOpts but panics if any error occurs.
func MustWithOpts(cfg *Config, opts Opts) *http.Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}

// contextLoggerProvider prefers opts.LoggerProvider, then the logger from the request context, then opts.Logger.
func contextLoggerProvider(opts Opts) func(ctx context.Context) log.FieldLogger {
	return func(ctx context.Context) log.FieldLogger {
		if opts.LoggerProvider != nil {
			if l := opts.LoggerProvider(ctx); l != nil {
				return l
			}
		}
		if l := GetLoggerFromContext(ctx); l != nil {
			return l
		}
		return opts.Logger
	}
}
