package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes recorded by RecordRefresh.
const (
	RefreshOK      = "ok"      // fresh record written
	RefreshStale   = "stale"   // fetch failed, previous record kept
	RefreshFailed  = "failed"  // fetch failed, nothing to fall back on
	RefreshSkipped = "skipped" // a newer record landed while fetching
	RefreshQuota   = "quota"   // store rejected the write
)

// Metrics collects cache and fetch observability on a private registry.
// All methods are safe on a nil receiver so components may run without one.
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal    *prometheus.CounterVec   // exchange, category, result
	fetchDuration   *prometheus.HistogramVec // exchange, op
	decodeFailures  *prometheus.CounterVec   // exchange, category
	storeRejections *prometheus.CounterVec   // key
	activePollers   prometheus.Gauge
}

// NewMetrics registers and returns all metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_board_refresh_total",
			Help: "Cache slot refreshes by outcome",
		}, []string{"exchange", "category", "result"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crypto_board_fetch_duration_seconds",
			Help:    "Upstream fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"exchange", "op"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_board_cache_decode_failures_total",
			Help: "Stored slots that could not be decoded",
		}, []string{"exchange", "category"}),
		storeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crypto_board_store_rejections_total",
			Help: "Slot writes rejected by the store",
		}, []string{"key"}),
		activePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crypto_board_active_pollers",
			Help: "Running refresh pollers",
		}),
	}

	m.registry.MustRegister(
		m.refreshTotal,
		m.fetchDuration,
		m.decodeFailures,
		m.storeRejections,
		m.activePollers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRefresh counts one refresh outcome.
func (m *Metrics) RecordRefresh(exchange, category, result string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(exchange, category, result).Inc()
}

// ObserveFetch records the latency of one upstream call.
func (m *Metrics) ObserveFetch(exchange, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(exchange, op).Observe(d.Seconds())
}

// RecordDecodeFailure counts a stored payload that failed to decode.
func (m *Metrics) RecordDecodeFailure(exchange, category string) {
	if m == nil {
		return
	}
	m.decodeFailures.WithLabelValues(exchange, category).Inc()
}

// RecordStoreRejection counts a write the store refused.
func (m *Metrics) RecordStoreRejection(key string) {
	if m == nil {
		return
	}
	m.storeRejections.WithLabelValues(key).Inc()
}

// IncrementPollers marks a poller as started.
func (m *Metrics) IncrementPollers() {
	if m == nil {
		return
	}
	m.activePollers.Inc()
}

// DecrementPollers marks a poller as stopped.
func (m *Metrics) DecrementPollers() {
	if m == nil {
		return
	}
	m.activePollers.Dec()
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	Refreshes       map[string]uint64 // "{exchange}-{category}/{result}" -> count
	Fetches         uint64
	DecodeFailures  uint64
	StoreRejections uint64
	ActivePollers   int
	Timestamp       time.Time
}

// Refresh returns the count for one slot and outcome.
func (s MetricsSnapshot) Refresh(exchange, category, result string) uint64 {
	return s.Refreshes[exchange+"-"+category+"/"+result]
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Refreshes: make(map[string]uint64),
		Timestamp: time.Now(),
	}
	if m == nil {
		return snap
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}

			switch mf.GetName() {
			case "crypto_board_refresh_total":
				key := labels["exchange"] + "-" + labels["category"] + "/" + labels["result"]
				snap.Refreshes[key] += uint64(metric.GetCounter().GetValue())
			case "crypto_board_fetch_duration_seconds":
				snap.Fetches += metric.GetHistogram().GetSampleCount()
			case "crypto_board_cache_decode_failures_total":
				snap.DecodeFailures += uint64(metric.GetCounter().GetValue())
			case "crypto_board_store_rejections_total":
				snap.StoreRejections += uint64(metric.GetCounter().GetValue())
			case "crypto_board_active_pollers":
				snap.ActivePollers = int(metric.GetGauge().GetValue())
			}
		}
	}
	return snap
}
