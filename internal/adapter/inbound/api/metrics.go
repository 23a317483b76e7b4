package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for pressroom.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	DispatchTotal   *prometheus.CounterVec
	GuardDecisions  *prometheus.CounterVec
	ResultStreams   prometheus.Gauge
	AuditDropsTotal prometheus.CounterFunc
}

// NewMetrics creates and registers all metrics with the given registry.
// auditDropped reports the async audit drop counter.
func NewMetrics(reg prometheus.Registerer, auditDropped func() float64) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pressroom",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "pressroom",
				Name:      "http_request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DispatchTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pressroom",
				Name:      "dispatch_total",
				Help:      "Total action dispatches by action and outcome",
			},
			[]string{"action", "outcome"}, // outcome=executed/failed/denied/superseded
		),
		GuardDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pressroom",
				Name:      "guard_decisions_total",
				Help:      "Total guard decisions by kind",
			},
			[]string{"kind"}, // kind=allow/deny_navigate/deny_error
		),
		ResultStreams: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pressroom",
				Name:      "result_streams_active",
				Help:      "Number of active result stream subscribers",
			},
		),
		AuditDropsTotal: promauto.With(reg).NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "pressroom",
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to backpressure",
			},
			auditDropped,
		),
	}
}
