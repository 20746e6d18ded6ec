package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics
// records nothing.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	CarrierErrors     *prometheus.CounterVec
	FulfillmentsTotal *prometheus.CounterVec
	BulkBatchSize     prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_requests_total",
				Help: "Total number of requests by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fulfillment_request_duration_seconds",
				Help:    "Request duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_carrier_errors_total",
				Help: "Total carrier API errors by carrier and error type",
			},
			[]string{"carrier", "error_type"},
		),
		FulfillmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fulfillment_orders_total",
				Help: "Fulfilled orders by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		BulkBatchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fulfillment_bulk_batch_size",
				Help:    "Number of orders per bulk fulfillment",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	if m == nil {
		return
	}
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordFulfillment counts one order outcome.
func (m *Metrics) RecordFulfillment(mode string, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.FulfillmentsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordBulk observes a bulk batch size.
func (m *Metrics) RecordBulk(size int) {
	if m == nil {
		return
	}
	m.BulkBatchSize.Observe(float64(size))
}
