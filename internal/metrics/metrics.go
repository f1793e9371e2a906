// Package metrics provides Prometheus collectors for violette's scan and
// live-view paths. A process-wide instance is exposed through Get so the
// orchestrator, probe adapter and publisher record without plumbing.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "violette"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	probesTotal    *prometheus.CounterVec
	probeDuration  prometheus.Histogram
	scansTotal     *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	hostsUp        prometheus.Gauge
	snapshotsTotal prometheus.Counter
	liveClients    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a metrics instance with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "probes_total",
			Help:      "Probe attempts by outcome (committed, skipped, failed).",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "probe_duration_seconds",
			Help:      "Duration of individual probe invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Completed scan runs by status.",
		}, []string{"status"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "run_duration_seconds",
			Help:      "Duration of whole scan runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		hostsUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "hosts_up",
			Help:      "Active hosts found by the most recent scan run.",
		}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "snapshots_total",
			Help:      "Snapshots published to live subscribers.",
		}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "clients",
			Help:      "Currently connected live-view subscribers.",
		}),
		registry: registry,
	}

	registry.MustRegister(
		m.probesTotal, m.probeDuration,
		m.scansTotal, m.scanDuration,
		m.hostsUp, m.snapshotsTotal, m.liveClients,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// IncrementProbes records one probe attempt with its outcome.
func (m *Metrics) IncrementProbes(outcome string) {
	m.probesTotal.WithLabelValues(outcome).Inc()
}

// ObserveProbeDuration records the duration of one probe invocation.
func (m *Metrics) ObserveProbeDuration(d time.Duration) {
	m.probeDuration.Observe(d.Seconds())
}

// RecordScanRun records the completion of a whole scan run.
func (m *Metrics) RecordScanRun(status string, d time.Duration, hostsUp int) {
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(d.Seconds())
	m.hostsUp.Set(float64(hostsUp))
}

// IncrementSnapshots records one published live snapshot.
func (m *Metrics) IncrementSnapshots() {
	m.snapshotsTotal.Inc()
}

// SetLiveClients records the current subscriber count.
func (m *Metrics) SetLiveClients(n int) {
	m.liveClients.Set(float64(n))
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// Get returns the process-wide metrics instance.
func Get() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}
