// Package metrics holds the service's Prometheus collectors and the request
// observer that feeds them.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/skekre98/chatlog/core"
)

// UnmatchedRoute labels requests no route matched (404s, probes on random
// paths) so they don't explode the path label's cardinality.
const UnmatchedRoute = "unmatched"

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var sizeBuckets = prometheus.ExponentialBuckets(64, 4, 8)

// Metrics tracks HTTP traffic on every listener and background job runs.
type Metrics struct {
	// Registry is what the metrics listener exposes.
	Registry *prometheus.Registry

	// RequestsTotal counts requests by listener, method, route and status
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks latency by listener, method and route
	RequestDuration *prometheus.HistogramVec

	RequestSize  *prometheus.HistogramVec
	ResponseSize *prometheus.HistogramVec

	// InFlight is the number of requests currently being served
	InFlight *prometheus.GaugeVec

	// JobRuns counts background job iterations by job and result
	// ("ok", "error")
	JobRuns *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors. Registration only fails on programming
// errors, hence MustRegister.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests by listener, method, route and status",
			},
			[]string{"listener", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: durationBuckets,
			},
			[]string{"listener", "method", "path"},
		),
		RequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request body size in bytes",
				Buckets: sizeBuckets,
			},
			[]string{"listener", "method", "path"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response body size in bytes",
				Buckets: sizeBuckets,
			},
			[]string{"listener", "method", "path"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "HTTP requests currently being served",
			},
			[]string{"listener"},
		),
		JobRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatlog_job_runs_total",
				Help: "Background job runs by job and result",
			},
			[]string{"job", "result"},
		),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestSize,
		m.ResponseSize,
		m.InFlight,
		m.JobRuns,
	)
	return m
}

// Observer returns the request observer for one listener.
func (m *Metrics) Observer(listener string) core.RequestObserver {
	return &observer{m: m, listener: listener}
}

// JobRun records one iteration of a background job.
func (m *Metrics) JobRun(job string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.JobRuns.WithLabelValues(job, result).Inc()
}

type observer struct {
	m        *Metrics
	listener string
}

func (o *observer) Before(r *http.Request) *http.Request {
	o.m.InFlight.WithLabelValues(o.listener).Inc()
	return r
}

func (o *observer) After(r *http.Request, info core.RequestInfo) {
	o.m.InFlight.WithLabelValues(o.listener).Dec()

	path := info.Route
	if path == "" {
		path = UnmatchedRoute
	}
	o.m.RequestsTotal.WithLabelValues(o.listener, r.Method, path, strconv.Itoa(info.Status)).Inc()
	o.m.RequestDuration.WithLabelValues(o.listener, r.Method, path).Observe(info.Duration.Seconds())
	if info.RequestSize > 0 {
		o.m.RequestSize.WithLabelValues(o.listener, r.Method, path).Observe(float64(info.RequestSize))
	}
	o.m.ResponseSize.WithLabelValues(o.listener, r.Method, path).Observe(float64(info.ResponseSize))
}
