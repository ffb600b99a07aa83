package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewPrometheusRegistry creates a registry with the standard Go and
// process collectors installed.
func NewPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Metrics holds all Prometheus metrics for the server. Pass to
// components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	UpstreamRetries prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kanjialive",
				Name:      "requests_total",
				Help:      "Total number of MCP requests processed",
			},
			[]string{"method", "status"}, // method=POST/GET/DELETE, status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kanjialive",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "kanjialive",
				Name:      "active_sessions",
				Help:      "Number of active MCP sessions",
			},
		),
		UpstreamRetries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "kanjialive",
				Name:      "upstream_retries_total",
				Help:      "Total retry attempts against the Kanji Alive API",
			},
		),
	}
}
