package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics contains HTTP-related Prometheus metrics
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// EventMetrics contains event-consumer Prometheus metrics
type EventMetrics struct {
	Consumed   *prometheus.CounterVec
	Duplicates *prometheus.CounterVec
	Published  *prometheus.CounterVec
}

// BusinessMetrics contains business-specific metrics
type BusinessMetrics struct {
	OrdersCreated     prometheus.Counter
	VisitsCreated     prometheus.Counter
	RoutesGenerated   prometheus.Counter
	ReservationLeaks  prometheus.Counter
	DownstreamLatency *prometheus.HistogramVec
}

// NewHTTPMetrics creates HTTP metrics for a service
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewEventMetrics creates event consumer/publisher metrics for a service
func NewEventMetrics(serviceName string) *EventMetrics {
	return &EventMetrics{
		Consumed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_consumed_total",
				Help: "Total number of events consumed",
			},
			[]string{"event_type", "outcome"},
		),
		Duplicates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_duplicate_total",
				Help: "Total number of duplicate events suppressed by the ledger",
			},
			[]string{"event_type"},
		),
		Published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: serviceName + "_events_published_total",
				Help: "Total number of events published",
			},
			[]string{"event_type", "outcome"},
		),
	}
}

// NewBusinessMetrics creates business-specific metrics
func NewBusinessMetrics(serviceName string) *BusinessMetrics {
	return &BusinessMetrics{
		OrdersCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_orders_created_total",
				Help: "Total number of orders created",
			},
		),
		VisitsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_visits_created_total",
				Help: "Total number of visits created",
			},
		),
		RoutesGenerated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_routes_generated_total",
				Help: "Total number of delivery routes generated",
			},
		),
		ReservationLeaks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: serviceName + "_reservation_leaks_total",
				Help: "Reservation releases that failed during order compensation",
			},
		),
		DownstreamLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    serviceName + "_downstream_request_duration_seconds",
				Help:    "Downstream service call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
	}
}

// RecordHTTPRequest records an HTTP request metric
func (m *HTTPMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
