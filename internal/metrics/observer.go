package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestObserver records one completed HTTP request.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

// EMFObserver emits request metrics as CloudWatch EMF lines.
type EMFObserver struct {
	Namespace string
}

func (o EMFObserver) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	New(o.Namespace).
		Dimension("Route", route).
		Dimension("StatusClass", statusClass(status)).
		Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("RequestCount").
		Property("method", method).
		Property("status", status).
		Flush()
}

// PrometheusObserver exposes request metrics on a Prometheus registry.
type PrometheusObserver struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewPrometheusObserver registers the request collectors on reg.
func NewPrometheusObserver(reg *prometheus.Registry) *PrometheusObserver {
	o := &PrometheusObserver{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "devello_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"route", "method", "status"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "devello_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"route"},
		),
		gatherer: reg,
	}
	reg.MustRegister(o.requests, o.latency)
	return o
}

func (o *PrometheusObserver) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	o.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	o.latency.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
