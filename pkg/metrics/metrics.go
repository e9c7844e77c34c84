// Package metrics exposes the scan console Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	backendBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15}
)

// Metrics holds all scan console metrics. Every series carries a constant
// service label.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DownstreamRequests *prometheus.CounterVec
	DownstreamDuration *prometheus.HistogramVec

	ScanProbes      *prometheus.CounterVec
	PickScans       *prometheus.CounterVec
	BatchViolations *prometheus.CounterVec
	DiffLines       *prometheus.CounterVec
	CommitAttempts  *prometheus.CounterVec
	ItemsScannedQty prometheus.Counter

	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

func DefaultConfig(serviceName string) *Config {
	return &Config{ServiceName: serviceName, Namespace: "wms"}
}

type factory struct {
	namespace string
	labels    prometheus.Labels
}

func (f factory) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: f.namespace, Name: name, Help: help, ConstLabels: f.labels,
	}, labels)
}

func (f factory) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: f.namespace, Name: name, Help: help, ConstLabels: f.labels, Buckets: buckets,
	}, labels)
}

// New creates a Metrics instance with Go and process collectors registered.
func New(config *Config) *Metrics {
	f := factory{namespace: config.Namespace, labels: prometheus.Labels{"service": config.ServiceName}}

	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequestsTotal:   f.counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration: f.histogram("http_request_duration_seconds", "HTTP request duration in seconds", httpBuckets, "method", "path"),
		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace, Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed", ConstLabels: f.labels,
		}),

		DownstreamRequests: f.counter("backend_requests_total", "Total number of calls to the WMS backend", "operation", "status"),
		DownstreamDuration: f.histogram("backend_request_duration_seconds", "WMS backend call duration in seconds", backendBuckets, "operation"),

		ScanProbes:      f.counter("scan_probes_total", "Barcode probes by mode and outcome status", "mode", "status"),
		PickScans:       f.counter("pick_scans_total", "Pick scan submissions by outcome", "outcome"),
		BatchViolations: f.counter("batch_policy_violations_total", "Scans refused by the batch policy", "violation"),
		DiffLines:       f.counter("pick_diff_lines_total", "Reconciled pick task lines by diff status", "status"),
		CommitAttempts:  f.counter("pick_commit_attempts_total", "Pick task commit attempts by gate outcome", "outcome"),
		ItemsScannedQty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace, Name: "pick_scanned_quantity_total",
			Help: "Total quantity written by pick scans", ConstLabels: f.labels,
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace, Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)", ConstLabels: f.labels,
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DownstreamRequests,
		m.DownstreamDuration,
		m.ScanProbes,
		m.PickScans,
		m.BatchViolations,
		m.DiffLines,
		m.CommitAttempts,
		m.ItemsScannedQty,
		m.CircuitBreakerState,
	)
	return m
}

// Handler serves the registry in the OpenMetrics format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDownstream records one WMS backend call. status is the HTTP status,
// or 0 when no response was received.
func (m *Metrics) RecordDownstream(operation string, status int, duration time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.DownstreamRequests.WithLabelValues(operation, label).Inc()
	m.DownstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) RecordProbe(mode, status string) {
	m.ScanProbes.WithLabelValues(mode, status).Inc()
}

// RecordPickScan records a pick scan outcome and, when written, its quantity
func (m *Metrics) RecordPickScan(outcome string, qty int) {
	m.PickScans.WithLabelValues(outcome).Inc()
	if qty > 0 {
		m.ItemsScannedQty.Add(float64(qty))
	}
}

func (m *Metrics) RecordBatchViolation(violation string) {
	m.BatchViolations.WithLabelValues(violation).Inc()
}

// RecordDiff adds per-status line counts from one reconciliation
func (m *Metrics) RecordDiff(counts map[string]int) {
	for status, n := range counts {
		if n > 0 {
			m.DiffLines.WithLabelValues(status).Add(float64(n))
		}
	}
}

func (m *Metrics) RecordCommitAttempt(outcome string) {
	m.CommitAttempts.WithLabelValues(outcome).Inc()
}

// SetCircuitBreakerState takes the gobreaker state as an int
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) IncrementHTTPRequestsInFlight() { m.HTTPRequestsInFlight.Inc() }

func (m *Metrics) DecrementHTTPRequestsInFlight() { m.HTTPRequestsInFlight.Dec() }
