package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for homework-sentinel.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	cyclesTotal              *prometheus.CounterVec
	notificationsTotal       *prometheus.CounterVec
	deduplicatedTotal        prometheus.Counter
	deliveryErrorsTotal      prometheus.Counter
	fetchErrorsTotal         *prometheus.CounterVec
	cursorGauge              prometheus.Gauge
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "homework_sentinel_cycle_duration_seconds",
			Help:    "Duration of poll cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homework_sentinel_cycles_total",
			Help: "Total poll cycles by outcome.",
		}, []string{"outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homework_sentinel_notifications_total",
			Help: "Total notifications delivered by kind.",
		}, []string{"kind"}),
		deduplicatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homework_sentinel_notifications_deduplicated_total",
			Help: "Total notifications suppressed because they repeat the last one sent.",
		}),
		deliveryErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "homework_sentinel_delivery_errors_total",
			Help: "Total failed notification deliveries.",
		}),
		fetchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "homework_sentinel_fetch_errors_total",
			Help: "Total status endpoint errors by reason.",
		}, []string{"reason"}),
		cursorGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homework_sentinel_cursor_timestamp",
			Help: "Unix timestamp used as from_date for the next poll.",
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "homework_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.cyclesTotal,
		m.notificationsTotal,
		m.deduplicatedTotal,
		m.deliveryErrorsTotal,
		m.fetchErrorsTotal,
		m.cursorGauge,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records the duration and outcome of a completed cycle.
func (m *Metrics) ObserveCycle(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
	m.cyclesTotal.WithLabelValues(outcome).Inc()
}

// IncNotifications increments the delivered notifications counter.
func (m *Metrics) IncNotifications(kind string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind).Inc()
}

// IncDeduplicated increments the suppressed notifications counter.
func (m *Metrics) IncDeduplicated() {
	if m == nil {
		return
	}
	m.deduplicatedTotal.Inc()
}

// IncDeliveryErrors increments the failed delivery counter.
func (m *Metrics) IncDeliveryErrors() {
	if m == nil {
		return
	}
	m.deliveryErrorsTotal.Inc()
}

// IncFetchErrors increments the fetch error counter for a reason.
func (m *Metrics) IncFetchErrors(reason string) {
	if m == nil {
		return
	}
	m.fetchErrorsTotal.WithLabelValues(reason).Inc()
}

// SetCursor records the current poll cursor.
func (m *Metrics) SetCursor(cursor int64) {
	if m == nil {
		return
	}
	m.cursorGauge.Set(float64(cursor))
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
