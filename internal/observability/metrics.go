package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	settlements     *prometheus.CounterVec
	unattributed    prometheus.Counter
	recalcs         *prometheus.CounterVec
}

// NewMetrics builds the registry with HTTP and ledger collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_orders_total",
		Help: "Order settlements by payment mode and outcome.",
	}, []string{"payment_mode", "outcome"})
	unattributed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_unattributed_units_total",
		Help: "Units sold without a supplier lot to attribute them to.",
	})
	recalcs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_supplier_recalculations_total",
		Help: "Supplier balance recalculations by trigger.",
	}, []string{"trigger"})
	registry.MustRegister(requests, duration, settlements, unattributed, recalcs)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		settlements:     settlements,
		unattributed:    unattributed,
		recalcs:         recalcs,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSettlement counts one settlement attempt.
func (m *Metrics) ObserveSettlement(mode, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(mode, outcome).Inc()
}

// ObserveUnattributed adds units that no supplier lot covered.
func (m *Metrics) ObserveUnattributed(units int) {
	if m == nil || units <= 0 {
		return
	}
	m.unattributed.Add(float64(units))
}

// ObserveSupplierRecalc counts a supplier balance recalculation.
func (m *Metrics) ObserveSupplierRecalc(trigger string) {
	if m == nil {
		return
	}
	m.recalcs.WithLabelValues(trigger).Inc()
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
