// Package metrics holds the process-scoped counters of the server and
// exposes them as a prometheus.Collector.
package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "guardpine"

// Collector is a prometheus.Collector that collects metrics about the
// HTTP server and its upstream dependencies.
type Collector struct {
	pageViews        atomic.Int64
	pageViewsFunc    prometheus.CounterFunc
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamFailures *prometheus.CounterVec
}

// NewCollector returns a new Collector with every counter at zero.
func NewCollector() *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "The number of HTTP requests served.",
			}, []string{"method", "route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "The time taken to serve an HTTP request.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			}, []string{"route"},
		),
		upstreamFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_failures_total",
				Help:      "The number of failed calls to the scraping target or the login provider.",
			}, []string{"upstream"},
		),
	}
	c.pageViewsFunc = prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "page_views_total",
			Help:      "The number of landing page views since the process started.",
		},
		func() float64 { return float64(c.pageViews.Load()) },
	)
	return c
}

// ViewPage counts one landing page view and returns the new total.
func (c *Collector) ViewPage() int64 {
	return c.pageViews.Add(1)
}

// PageViews returns the current landing page view count.
func (c *Collector) PageViews() int64 {
	return c.pageViews.Load()
}

// ObserveRequest records a served request.
func (c *Collector) ObserveRequest(method, route string, code int, took time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(took.Seconds())
}

// UpstreamFailed records a failed call to upstream.
func (c *Collector) UpstreamFailed(upstream string) {
	c.upstreamFailures.WithLabelValues(upstream).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.pageViewsFunc.Describe(ch)
	c.requests.Describe(ch)
	c.requestDuration.Describe(ch)
	c.upstreamFailures.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.pageViewsFunc.Collect(ch)
	c.requests.Collect(ch)
	c.requestDuration.Collect(ch)
	c.upstreamFailures.Collect(ch)
}
