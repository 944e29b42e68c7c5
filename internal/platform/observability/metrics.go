package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics counts stock operations per transport.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beerstock",
			Name:      "requests_total",
			Help:      "Stock operations by transport, operation and outcome.",
		}, []string{"transport", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beerstock",
			Name:      "request_duration_seconds",
			Help:      "Stock operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport", "operation"}),
		gatherer: reg,
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *Metrics) Observe(transport, operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(transport, operation, outcome).Inc()
	m.duration.WithLabelValues(transport, operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
