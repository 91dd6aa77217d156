// Package metrics exposes Prometheus collectors for scheduling outcomes,
// persistence failures and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records scheduling metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	registrations       *prometheus.CounterVec
	bookings            *prometheus.CounterVec
	cancellations       *prometheus.CounterVec
	reschedules         *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		gatherer: reg,
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_registrations_total",
			Help: "Total number of registered records by kind",
		}, []string{"kind"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_appointment_bookings_total",
			Help: "Total number of booking attempts by outcome",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_appointment_cancellations_total",
			Help: "Total number of cancellation attempts by outcome",
		}, []string{"outcome"}),
		reschedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_appointment_reschedules_total",
			Help: "Total number of reschedule attempts by outcome",
		}, []string{"outcome"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_persistence_failures_total",
			Help: "Total number of failed loads and saves by record kind",
		}, []string{"kind", "op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hospital_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hospital_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		c.registrations,
		c.bookings,
		c.cancellations,
		c.reschedules,
		c.persistenceFailures,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

func (c *Collector) RecordRegistration(kind string) {
	if c == nil {
		return
	}
	c.registrations.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordBooking(outcome string) {
	if c == nil {
		return
	}
	c.bookings.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCancellation(outcome string) {
	if c == nil {
		return
	}
	c.cancellations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordReschedule(outcome string) {
	if c == nil {
		return
	}
	c.reschedules.WithLabelValues(outcome).Inc()
}

// RecordPersistenceFailure counts a failed load or save of kind.
func (c *Collector) RecordPersistenceFailure(kind, op string) {
	if c == nil {
		return
	}
	c.persistenceFailures.WithLabelValues(kind, op).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route template.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
