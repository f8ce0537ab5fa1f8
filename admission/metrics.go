/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-crptapi/internal/libinfo"
)

// MetricsCollector collects admission statistics of gates. Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// ObserveGrant is called for every granted admission with the time the caller spent waiting for it.
	ObserveGrant(gate string, waited time.Duration)

	// IncCancellations is called when a waiting caller gives up because its context is done.
	IncCancellations(gate string)

	// IncWaiting and DecWaiting track callers that are blocked waiting for a free slot.
	IncWaiting(gate string)
	DecWaiting(gate string)
}

const gateLabel = "gate"

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels applied to all metrics.
	ConstLabels prometheus.Labels

	// WaitDurationBuckets overrides default histogram buckets of the wait duration.
	WaitDurationBuckets []float64
}

// PrometheusMetrics is a MetricsCollector backed by Prometheus.
type PrometheusMetrics struct {
	GrantsTotal        *prometheus.CounterVec
	CancellationsTotal *prometheus.CounterVec
	WaitDuration       *prometheus.HistogramVec
	WaitingCallers     *prometheus.GaugeVec
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	buckets := opts.WaitDurationBuckets
	if len(buckets) == 0 {
		buckets = []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
	}
	labels := []string{gateLabel}
	constLabels := libinfo.AddPrometheusLibVersionLabel(opts.ConstLabels)
	return &PrometheusMetrics{
		GrantsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_grants_total",
			Help:        "Number of admissions granted by the gate.",
			ConstLabels: constLabels,
		}, labels),
		CancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_cancellations_total",
			Help:        "Number of admission waits aborted by context cancellation.",
			ConstLabels: constLabels,
		}, labels),
		WaitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_wait_duration_seconds",
			Help:        "Time callers spent waiting for a granted admission.",
			ConstLabels: constLabels,
			Buckets:     buckets,
		}, labels),
		WaitingCallers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "admission_waiting_callers",
			Help:        "Number of callers currently blocked waiting for a free slot.",
			ConstLabels: constLabels,
		}, labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(pm.GrantsTotal, pm.CancellationsTotal, pm.WaitDuration, pm.WaitingCallers)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.GrantsTotal)
	prometheus.Unregister(pm.CancellationsTotal)
	prometheus.Unregister(pm.WaitDuration)
	prometheus.Unregister(pm.WaitingCallers)
}

// ObserveGrant increments grants and observes the wait duration.
func (pm *PrometheusMetrics) ObserveGrant(gate string, waited time.Duration) {
	pm.GrantsTotal.WithLabelValues(gate).Inc()
	pm.WaitDuration.WithLabelValues(gate).Observe(waited.Seconds())
}

// IncCancellations increments the number of canceled waits.
func (pm *PrometheusMetrics) IncCancellations(gate string) {
	pm.CancellationsTotal.WithLabelValues(gate).Inc()
}

// IncWaiting increments the number of blocked callers.
func (pm *PrometheusMetrics) IncWaiting(gate string) {
	pm.WaitingCallers.WithLabelValues(gate).Inc()
}

// DecWaiting decrements the number of blocked callers.
func (pm *PrometheusMetrics) DecWaiting(gate string) {
	pm.WaitingCallers.WithLabelValues(gate).Dec()
}

type disabledMetrics struct{}

func (disabledMetrics) ObserveGrant(string, time.Duration) {}
func (disabledMetrics) IncCancellations(string)            {}
func (disabledMetrics) IncWaiting(string)                  {}
func (disabledMetrics) DecWaiting(string)                  {}
