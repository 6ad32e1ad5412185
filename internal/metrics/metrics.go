// Package metrics holds the Prometheus collectors of the leaderboard backend.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flexboard"

// Metrics groups the collectors updated by the hub, scheduler and HTTP layer.
type Metrics struct {
	registry *prometheus.Registry

	wsClients     prometheus.Gauge
	wsMessages    *prometheus.CounterVec
	wsSendErrors  prometheus.Counter
	schedulerRuns *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	completions   *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry together
// with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Currently connected live clients.",
		}),
		wsMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_sent_total",
			Help:      "Messages delivered to live clients by type.",
		}, []string{"type"}),
		wsSendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_send_errors_total",
			Help:      "Failed deliveries to live clients.",
		}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Scheduled task executions by task and result.",
		}, []string{"task", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_processed_total",
			Help:      "Completed-transaction notifications processed by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.wsClients,
		m.wsMessages,
		m.wsSendErrors,
		m.schedulerRuns,
		m.httpRequests,
		m.httpDuration,
		m.completions,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) MessageSent(msgType string) {
	if m == nil {
		return
	}
	m.wsMessages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.wsSendErrors.Inc()
}

// SchedulerRun records one task execution; result is "ok", "error" or "skipped".
func (m *Metrics) SchedulerRun(task, result string) {
	if m == nil {
		return
	}
	m.schedulerRuns.WithLabelValues(task, result).Inc()
}

func (m *Metrics) ObserveRequest(route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}

// PoolStats is a point-in-time view of the database connection pool.
type PoolStats struct {
	Acquired int32
	Idle     int32
	Total    int32
}

// TrackPool exports connection pool gauges read from stats at scrape time.
func (m *Metrics) TrackPool(stats func() PoolStats) {
	if m == nil || stats == nil {
		return
	}
	gauge := func(name, help string, pick func(PoolStats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(stats())) })
	}
	m.registry.MustRegister(
		gauge("acquired_conns", "Connections currently in use.", func(s PoolStats) int32 { return s.Acquired }),
		gauge("idle_conns", "Idle connections in the pool.", func(s PoolStats) int32 { return s.Idle }),
		gauge("total_conns", "Open connections in the pool.", func(s PoolStats) int32 { return s.Total }),
	)
}

func (m *Metrics) CompletionProcessed(result string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(result).Inc()
}
