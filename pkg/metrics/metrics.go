package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests    *prometheus.CounterVec
	LatencyMS   *prometheus.HistogramVec
	Transitions *prometheus.CounterVec
	Published   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewServerMetrics registers the service collectors on a private registry.
func NewServerMetrics(service string) *ServerMetrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: service,
		Name:      "transitions_total",
		Help:      "Checkout transitions by operation and result.",
	}, []string{"operation", "result"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Subsystem: service,
		Name:      "outbox_published_total",
		Help:      "Outbox events handed to the broker, by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(requests, latency, transitions, published,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return &ServerMetrics{
		Requests:    requests,
		LatencyMS:   latency,
		Transitions: transitions,
		Published:   published,
		gatherer:    reg,
	}
}

// ObserveTransition counts one checkout operation outcome.
func (m *ServerMetrics) ObserveTransition(operation, result string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, result).Inc()
}

// ObservePublished counts one outbox delivery attempt.
func (m *ServerMetrics) ObservePublished(outcome string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(outcome).Inc()
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
