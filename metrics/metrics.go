// Package metrics exposes guard daemon instrumentation to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tfaguard"

// ResultAccepted labels requests that were committed.
const ResultAccepted = "accepted"

// Metrics holds the daemon collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	failures       *prometheus.CounterVec
	guards         prometheus.Gauge
	recoveries     prometheus.Gauge
	delegations    prometheus.Gauge
	receiptsSigned prometheus.Counter
	journalRecords prometheus.Counter
}

// New creates collectors on a fresh registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Number of signed requests by operation and result",
			},
			[]string{"op", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Time to evaluate, persist and dispatch a request",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "infrastructure_failures_total",
				Help:      "Number of requests that failed after authorization, by stage",
			},
			[]string{"stage"},
		),
		guards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "installed_guards",
			Help:      "Number of installed guards",
		}),
		recoveries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_recoveries",
			Help:      "Number of guards with a pending device recovery",
		}),
		delegations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_delegations",
			Help:      "Number of guards with a pending delegation",
		}),
		receiptsSigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_signed_total",
			Help:      "Number of signed receipts issued",
		}),
		journalRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_records_total",
			Help:      "Number of records written to the journal archive",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.failures,
		m.guards, m.recoveries, m.delegations,
		m.receiptsSigned, m.journalRecords,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one request. result is ResultAccepted or the
// rejection code.
func (m *Metrics) ObserveRequest(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, result).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

// Failure records an infrastructure failure at stage (journal, statedb,
// dispatch).
func (m *Metrics) Failure(stage string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(stage).Inc()
}

// SetGuards publishes the guard population.
func (m *Metrics) SetGuards(installed, recoveries, delegations int) {
	if m == nil {
		return
	}
	m.guards.Set(float64(installed))
	m.recoveries.Set(float64(recoveries))
	m.delegations.Set(float64(delegations))
}

func (m *Metrics) ReceiptSigned() {
	if m == nil {
		return
	}
	m.receiptsSigned.Inc()
}

func (m *Metrics) JournalRecords(n int) {
	if m == nil {
		return
	}
	m.journalRecords.Add(float64(n))
}
