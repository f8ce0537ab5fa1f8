/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command crpt-submit submits document files from an inbox directory to the CRPT service
// without exceeding the configured admission rate.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acronis/go-crptapi/admission"
	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/crpt"
	"github.com/acronis/go-crptapi/httpclient"
	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/metricsserver"
	"github.com/acronis/go-crptapi/retry"
	"github.com/acronis/go-crptapi/service"
	"github.com/acronis/go-crptapi/submitter"
)

const (
	envVarsPrefix      = "CRPT"
	metricsNamespace   = "crpt_submit"
	defaultConcurrency = submitter.DefaultConcurrency
)

type appConfig struct {
	Log           *log.Config
	Admission     *admission.Config
	CRPT          *crpt.Config
	MetricsServer *metricsserver.Config
}

func main() {
	if err := runApp(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runApp() error {
	configPath := flag.String("config", "", "path to the YAML or JSON configuration file")
	inbox := flag.String("inbox", "", "directory with <name>.json documents and optional <name>.sig signatures")
	watch := flag.Duration("watch", 0, "rescan the inbox with this interval, 0 means a single pass")
	concurrency := flag.Int("concurrency", defaultConcurrency, "max number of simultaneous submissions")
	retries := flag.Int("retries", 0, "max number of repeated submissions of a document failed with a temporary error")
	flag.Parse()

	if *inbox == "" {
		return fmt.Errorf("-inbox is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLogger := log.NewLogger(cfg.Log)
	defer closeLogger()

	admissionMetrics := admission.NewPrometheusMetricsWithOpts(admission.PrometheusMetricsOpts{Namespace: metricsNamespace})
	admitter, err := admission.NewAdmitter(cfg.Admission, admission.GateOpts{
		Logger:           logger,
		MetricsCollector: admissionMetrics,
	})
	if err != nil {
		return fmt.Errorf("create admission gate: %w", err)
	}

	httpMetrics := httpclient.NewPrometheusMetricsCollector(metricsNamespace)
	client, err := crpt.NewClient(cfg.CRPT, crpt.ClientOpts{
		Admitter:       admitter,
		Logger:         logger,
		HTTPClientOpts: httpclient.Opts{Collector: httpMetrics},
	})
	if err != nil {
		return fmt.Errorf("create CRPT client: %w", err)
	}

	submitterOpts := submitter.Opts{Concurrency: *concurrency, Logger: logger}
	if *retries > 0 {
		submitterOpts.RetryPolicy = retry.NewExponentialBackoffPolicy(time.Second, *retries)
	}
	dirWorker := submitter.NewDirWorker(*inbox, submitter.New(client, submitterOpts), submitter.DirWorkerOpts{Logger: logger})

	var worker service.Worker = dirWorker
	if *watch > 0 {
		worker = service.NewPeriodicWorker(dirWorker, *watch, logger)
	}
	units := []service.Unit{service.NewWorkerUnitWithOpts(worker, service.WorkerUnitOpts{
		MetricsRegisterer: &collectors{admission: admissionMetrics, http: httpMetrics},
	})}
	if cfg.MetricsServer.Enabled {
		units = append(units, metricsserver.NewWithOpts(cfg.MetricsServer, logger, metricsserver.Opts{
			HealthCheck: inboxHealthCheck(*inbox),
		}))
	}

	logger.Info("starting documents submission",
		log.String("inbox", *inbox), log.Duration("watch", *watch), log.Int("capacity", cfg.Admission.Capacity),
		log.Duration("window", cfg.Admission.Window), log.String("algorithm", string(cfg.Admission.Algorithm)))

	if err = service.New(logger, service.NewCompositeUnit(units...)).Start(); err != nil {
		return err
	}

	if *watch == 0 {
		if report := dirWorker.LastReport(); report.Failed > 0 {
			return fmt.Errorf("%d of %d documents failed, see %s", report.Failed, report.Total(),
				filepath.Join(*inbox, submitter.DefaultFailedDirName))
		}
	}
	return nil
}

func loadConfig(path string) (*appConfig, error) {
	cfg := &appConfig{
		Log:           log.NewConfig(),
		Admission:     admission.NewConfig(),
		CRPT:          crpt.NewConfig(),
		MetricsServer: metricsserver.NewConfig(),
	}
	loader := config.NewDefaultLoader(envVarsPrefix)
	cfgs := []config.Config{cfg.Admission, cfg.CRPT, cfg.MetricsServer}
	if path == "" {
		return cfg, loader.Load(cfg.Log, cfgs...)
	}
	dataType := config.DataTypeYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dataType = config.DataTypeJSON
	}
	return cfg, loader.LoadFromFile(path, dataType, cfg.Log, cfgs...)
}

func inboxHealthCheck(inbox string) metricsserver.HealthCheck {
	return func(ctx context.Context) (metricsserver.HealthCheckResult, error) {
		status := metricsserver.HealthCheckStatusOK
		if fi, err := os.Stat(inbox); err != nil || !fi.IsDir() {
			status = metricsserver.HealthCheckStatusFail
		}
		return metricsserver.HealthCheckResult{"inbox": status}, ctx.Err()
	}
}

type collectors struct {
	admission *admission.PrometheusMetrics
	http      *httpclient.PrometheusMetricsCollector
}

func (c *collectors) MustRegisterMetrics() {
	c.admission.MustRegister()
	c.http.MustRegister()
}

func (c *collectors) UnregisterMetrics() {
	c.admission.Unregister()
	c.http.Unregister()
}
