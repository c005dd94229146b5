package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the rich history service.
type Metrics struct {
	// Adds
	adds       *prometheus.CounterVec
	duplicates prometheus.Counter

	// Capacity
	evictions     prometheus.Counter
	limitWarnings prometheus.Counter
	storageFull   prometheus.Counter
	entries       prometheus.Gauge
	pruned        prometheus.Counter

	// Operation latency
	operationDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil registerer uses the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		adds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "richhistory_adds_total",
				Help: "Total number of add attempts by result",
			},
			[]string{"backend", "result"},
		),

		duplicates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "richhistory_duplicates_total",
				Help: "Total number of adds rejected as duplicates",
			},
		),

		evictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "richhistory_evictions_total",
				Help: "Total number of entries evicted to stay within the limit",
			},
		),

		limitWarnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "richhistory_limit_exceeded_total",
				Help: "Total number of adds that reached the entry limit",
			},
		),

		storageFull: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "richhistory_storage_full_total",
				Help: "Total number of adds rejected because the backend was full",
			},
		),

		entries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "richhistory_entries",
				Help: "Current number of stored entries",
			},
		),

		pruned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "richhistory_pruned_total",
				Help: "Total number of entries removed by retention",
			},
		),

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "richhistory_operation_duration_seconds",
				Help:    "Duration of rich history operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10µs to 330ms
			},
			[]string{"operation"},
		),
	}
}

// RecordAdd records the outcome of an add ("added", "duplicate", "storage_full", "error").
func (m *Metrics) RecordAdd(backend, result string) {
	m.adds.WithLabelValues(backend, result).Inc()
	switch result {
	case "duplicate":
		m.duplicates.Inc()
	case "storage_full":
		m.storageFull.Inc()
	}
}

// RecordEvictions records entries evicted by one add.
func (m *Metrics) RecordEvictions(count int) {
	m.evictions.Add(float64(count))
}

// RecordLimitExceeded records an add that hit the entry limit.
func (m *Metrics) RecordLimitExceeded() {
	m.limitWarnings.Inc()
}

// RecordPruned records entries removed by retention.
func (m *Metrics) RecordPruned(count int64) {
	m.pruned.Add(float64(count))
}

// UpdateEntries sets the current entry count.
func (m *Metrics) UpdateEntries(count int) {
	m.entries.Set(float64(count))
}

// RecordOperation records how long an operation took.
func (m *Metrics) RecordOperation(operation string, start time.Time) {
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
