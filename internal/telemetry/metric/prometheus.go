// Package metric provides Prometheus metrics for FileLink.
package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "filelink"

// Consume result label values.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"
)

// Registry holds the application metrics and the Prometheus registry they
// are registered with.
type Registry struct {
	reg *prometheus.Registry

	LinksInserted    prometheus.Counter
	LinksConsumed    *prometheus.CounterVec
	LinksSwept       prometheus.Counter
	InsertCollisions prometheus.Counter
	StoreErrors      *prometheus.CounterVec
	StoreOpDuration  *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewRegistry creates a registry with all application metrics plus the Go
// and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		LinksInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_inserted_total",
			Help:      "Total number of link entries created",
		}),
		LinksConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_consumed_total",
			Help:      "Total number of consume calls by result",
		}, []string{"result"}),
		LinksSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "links_swept_total",
			Help:      "Total number of expired link entries deleted",
		}),
		InsertCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "insert_collisions_total",
			Help:      "Total number of token collisions seen while inserting",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "store_errors_total",
			Help:      "Total number of storage failures by operation",
		}, []string{"op"}),
		StoreOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "store_operation_seconds",
			Help:      "Latency of link store operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.LinksInserted,
		r.LinksConsumed,
		r.LinksSwept,
		r.InsertCollisions,
		r.StoreErrors,
		r.StoreOpDuration,
		r.HTTPRequests,
		r.HTTPDuration,
	)

	return r
}

// Prometheus returns the underlying registry, for components that register
// their own collectors (e.g. the Badger size gauges).
func (r *Registry) Prometheus() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveInsert records a completed insert.
func (r *Registry) ObserveInsert(elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.StoreOpDuration.WithLabelValues("insert").Observe(elapsed.Seconds())
	if err != nil {
		r.StoreErrors.WithLabelValues("insert").Inc()
		return
	}
	r.LinksInserted.Inc()
}

// ObserveCollision records a token collision during insert.
func (r *Registry) ObserveCollision() {
	if r == nil {
		return
	}
	r.InsertCollisions.Inc()
}

// ObserveConsume records a consume outcome. A storage failure is neither a
// hit nor a miss.
func (r *Registry) ObserveConsume(elapsed time.Duration, hit bool, err error) {
	if r == nil {
		return
	}
	r.StoreOpDuration.WithLabelValues("consume").Observe(elapsed.Seconds())
	switch {
	case err != nil:
		r.StoreErrors.WithLabelValues("consume").Inc()
	case hit:
		r.LinksConsumed.WithLabelValues(ResultHit).Inc()
	default:
		r.LinksConsumed.WithLabelValues(ResultMiss).Inc()
	}
}

// ObserveSweep records a sweep pass.
func (r *Registry) ObserveSweep(elapsed time.Duration, deleted int, err error) {
	if r == nil {
		return
	}
	r.StoreOpDuration.WithLabelValues("sweep").Observe(elapsed.Seconds())
	if err != nil {
		r.StoreErrors.WithLabelValues("sweep").Inc()
		return
	}
	r.LinksSwept.Add(float64(deleted))
}

// ObserveHTTP records a finished HTTP request.
func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
