/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package metricsserver provides an HTTP server that exposes Prometheus metrics and a health check.
package metricsserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/service"
)

// Endpoint paths.
const (
	MetricsPath     = "/metrics"
	HealthCheckPath = "/healthz"
)

// Opts represents options for the metrics server.
type Opts struct {
	// Gatherer is the source of exposed metrics. prometheus.DefaultGatherer is used when nil.
	Gatherer prometheus.Gatherer

	// HealthCheck reports statuses of the service components. Empty result is reported when nil.
	HealthCheck HealthCheck
}

// MetricsServer serves Prometheus metrics and the health check. It implements service.Unit.
type MetricsServer struct {
	URL             string
	HTTPServer      *http.Server
	Logger          log.FieldLogger
	shutdownTimeout time.Duration
	httpServerDone  chan struct{}
}

var _ service.Unit = (*MetricsServer)(nil)

// New creates a new metrics server with default options.
func New(cfg *Config, logger log.FieldLogger) *MetricsServer {
	return NewWithOpts(cfg, logger, Opts{})
}

// NewWithOpts creates a new metrics server with the given options.
func NewWithOpts(cfg *Config, logger log.FieldLogger, opts Opts) *MetricsServer {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	shutdownTimeout := time.Duration(cfg.ShutdownTimeout)
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	address := cfg.Address
	if address == "" {
		address = DefaultAddress
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID, loggingMiddleware(logger), chimiddleware.Recoverer)
	router.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	router.Method(http.MethodGet, HealthCheckPath, newHealthCheckHandler(opts.HealthCheck, logger))

	httpServer := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &MetricsServer{
		URL:             "http://" + address,
		HTTPServer:      httpServer,
		Logger:          logger.With(log.String("address", address)),
		shutdownTimeout: shutdownTimeout,
		httpServerDone:  make(chan struct{}),
	}
}

// Start serves HTTP requests until the server is stopped. It blocks, so it's supposed to be called in a goroutine.
// A listen error is sent into fatalError.
func (s *MetricsServer) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	s.Logger.Info("starting metrics HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.Logger.Info("metrics HTTP server closed")
			return
		}
		s.Logger.Error("metrics HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops the server. In the graceful mode in-flight requests are given Config.ShutdownTimeout to complete.
func (s *MetricsServer) Stop(gracefully bool) error {
	s.Logger.Info("stopping metrics HTTP server...", log.Bool("gracefully", gracefully))
	var err error
	if gracefully {
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err = s.HTTPServer.Shutdown(ctx)
	} else {
		err = s.HTTPServer.Close()
	}
	if err != nil {
		s.Logger.Error("metrics HTTP server stopping error", log.Error(err))
		return err
	}
	<-s.httpServerDone
	return nil
}
