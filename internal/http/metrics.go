package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

// Metrics holds the service collectors. It also records directory sync and
// batch outcomes for the environment and batch services.
type Metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	syncOperations *prometheus.CounterVec
	batchRecords   *prometheus.CounterVec
}

// NewMetrics registers the collectors with the default registry, reusing
// collectors that are already registered.
func NewMetrics() *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sistema_admin",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sistema_admin",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sistema_admin",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}),
		syncOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sistema_admin",
			Name:      "sync_operations_total",
			Help:      "Directory synchronization units by kind and outcome",
		}, []string{"kind", "outcome"}),
		batchRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sistema_admin",
			Name:      "batch_records_total",
			Help:      "Processed batch lookup records by outcome",
		}, []string{"outcome"}),
	}
	m.requestTotal = registerCounter(m.requestTotal)
	m.rateLimitHits = registerCounter(m.rateLimitHits)
	m.syncOperations = registerCounter(m.syncOperations)
	m.batchRecords = registerCounter(m.batchRecords)
	if err := prometheus.Register(m.requestLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.requestLatency = existing
			}
		}
	}
	return m
}

func registerCounter(counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return counter
}

// RecordSync counts one synchronized unit.
func (m *Metrics) RecordSync(kind, outcome string) {
	if m == nil {
		return
	}
	m.syncOperations.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

// RecordBatchRecord counts one processed batch record.
func (m *Metrics) RecordBatchRecord(outcome string) {
	if m == nil {
		return
	}
	m.batchRecords.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m *Metrics) recordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) recordRateLimitHit(route, key string) {
	if m == nil {
		return
	}
	m.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}
