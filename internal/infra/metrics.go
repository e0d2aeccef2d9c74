package infra

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	Generations      *prometheus.CounterVec
	GalleryOps       *prometheus.CounterVec
	QueryDuration    *prometheus.HistogramVec
}

// NewMetrics registers every collector on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		RequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghiblyze",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ghiblyze",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghiblyze",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		}),
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghiblyze",
			Subsystem: "processor",
			Name:      "generations_total",
			Help:      "Generation runs by input kind and outcome",
		}, []string{"kind", "outcome"}),
		GalleryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghiblyze",
			Subsystem: "gallery",
			Name:      "operations_total",
			Help:      "Gallery operations by name and outcome",
		}, []string{"op", "outcome"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ghiblyze",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "SQL statement duration by marker",
			Buckets:   prometheus.DefBuckets,
		}, []string{"marker", "op", "outcome"}),
	}
	reg.MustRegister(m.RequestCounter, m.RequestDuration, m.RequestsInFlight, m.Generations, m.GalleryOps, m.QueryDuration)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveQuery records a SQL statement duration.
func (m *Metrics) ObserveQuery(marker, op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(marker, op, outcome(err)).Observe(d.Seconds())
}

// ObserveGeneration counts a finished generation run.
func (m *Metrics) ObserveGeneration(kind string, err error) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(kind, outcome(err)).Inc()
}

// ObserveGallery counts a gallery repository call.
func (m *Metrics) ObserveGallery(op string, err error) {
	if m == nil {
		return
	}
	m.GalleryOps.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
