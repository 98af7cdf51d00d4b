// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"compounder/internal/compounding"
)

const namespace = "compounder"

// Metrics owns a private registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	APIErrorCounter          *prometheus.CounterVec

	MovementCounter      *prometheus.CounterVec
	EstimateHistogram    prometheus.Histogram
	EstimateCounter      *prometheus.CounterVec
	DBOperationHistogram *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestDurationHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		APIRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "route"},
		),
		APIErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API responses with status >= 400",
			},
			[]string{"method", "route", "status"},
		),

		MovementCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_movements_total",
				Help:      "Lot movement attempts by direction and outcome",
			},
			[]string{"type", "outcome"},
		),
		EstimateHistogram: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "availability_estimate_duration_seconds",
			Help:      "Time spent loading and computing availability reports",
			Buckets:   prometheus.DefBuckets,
		}),
		EstimateCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_estimates_total",
				Help:      "Availability reports computed, by outcome",
			},
			[]string{"outcome"},
		),
		DBOperationHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Duration of database operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts, errors and latency. Routes are labelled
// by their chi pattern so ids do not explode the label space.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		m.APIRequestCounter.With(prometheus.Labels{"method": r.Method, "route": route}).Inc()
		m.RequestDurationHistogram.With(prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": code,
		}).Observe(time.Since(start).Seconds())
		if status >= http.StatusBadRequest {
			m.APIErrorCounter.With(prometheus.Labels{"method": r.Method, "route": route, "status": code}).Inc()
		}
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// ObserveMovement counts one consume or receive attempt.
func (m *Metrics) ObserveMovement(kind string, err error) {
	if m == nil {
		return
	}
	m.MovementCounter.With(prometheus.Labels{"type": kind, "outcome": Outcome(err)}).Inc()
}

// ObserveEstimate records the latency and outcome of an availability report.
func (m *Metrics) ObserveEstimate(start time.Time, err error) {
	if m == nil {
		return
	}
	m.EstimateHistogram.Observe(time.Since(start).Seconds())
	m.EstimateCounter.With(prometheus.Labels{"outcome": Outcome(err)}).Inc()
}

// TrackDBOperation returns a function that observes the time since start.
func (m *Metrics) TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		if m == nil {
			return
		}
		m.DBOperationHistogram.With(prometheus.Labels{"operation": operation}).Observe(time.Since(start).Seconds())
	}
}

// Outcome maps an error onto a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, compounding.ErrValidation):
		return "invalid"
	case errors.Is(err, compounding.ErrNotFound):
		return "not_found"
	case errors.Is(err, compounding.ErrIncompatibleUnits):
		return "incompatible_units"
	case errors.Is(err, compounding.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, compounding.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
