package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reqCount    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
	errorCount  *prometheus.CounterVec

	materialized *prometheus.CounterVec
	completions  *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reqCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "care_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "care_http_request_duration_seconds",
				Help: "Request duration seconds",
			},
			[]string{"method", "path"},
		),
		errorCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "care_errors_total",
				Help: "Errors returned to clients, by kind",
			},
			[]string{"kind"},
		),
		materialized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "care_materialized_occurrences_total",
				Help: "Occurrences handled by the daily materialization, by outcome",
			},
			[]string{"outcome"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "care_completions_total",
				Help: "Completed occurrences, by care type",
			},
			[]string{"care_type"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "care_materialization_last_run_timestamp_seconds",
			Help: "Unix time of the last finished materialization run",
		}),
	}

	m.registry.MustRegister(
		m.reqCount,
		m.reqDuration,
		m.errorCount,
		m.materialized,
		m.completions,
		m.lastRun,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reqCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.reqDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddMaterialized(created, skipped, failed int) {
	if m == nil {
		return
	}
	m.materialized.WithLabelValues("created").Add(float64(created))
	m.materialized.WithLabelValues("skipped").Add(float64(skipped))
	m.materialized.WithLabelValues("failed").Add(float64(failed))
	m.lastRun.SetToCurrentTime()
}

func (m *Metrics) IncCompletion(careType string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(careType).Inc()
}
