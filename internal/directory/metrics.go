package directory

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the directory's request metrics.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	limited  prometheus.Counter
}

// NewMetrics registers the directory metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sealroom",
			Subsystem: "directory",
			Name:      "requests_total",
			Help:      "Directory requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sealroom",
			Subsystem: "directory",
			Name:      "request_duration_seconds",
			Help:      "Directory request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sealroom",
			Subsystem: "directory",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-caller rate limit.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.limited)
	return m
}
