package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics of the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	quotations      *prometheus.CounterVec
	orders          *prometheus.CounterVec
	stockRejections prometheus.Counter
	payments        *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and sales metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ferreexpress_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ferreexpress_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	quotations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ferreexpress_quotations_created_total",
		Help: "Quotations created, by applied discount rule type.",
	}, []string{"discount"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ferreexpress_orders_created_total",
		Help: "Orders created, by origin.",
	}, []string{"source"})
	stock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ferreexpress_stock_rejections_total",
		Help: "Order attempts rejected for insufficient stock.",
	})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ferreexpress_payments_total",
		Help: "Simulated payment attempts by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, quotations, orders, stock, payments)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		quotations:      quotations,
		orders:          orders,
		stockRejections: stock,
		payments:        payments,
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

// Middleware records request count and latency per route pattern.
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

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// QuotationCreated counts a new quotation; ruleType is empty without discount.
func (m *Metrics) QuotationCreated(ruleType string) {
	if m == nil {
		return
	}
	if ruleType == "" {
		ruleType = "none"
	}
	m.quotations.WithLabelValues(ruleType).Inc()
}

// OrderCreated counts a new order by source ("direct" or "quotation").
func (m *Metrics) OrderCreated(source string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(source).Inc()
}

// StockRejected counts an order refused for insufficient stock.
func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

// PaymentProcessed counts a payment attempt.
func (m *Metrics) PaymentProcessed(approved bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if approved {
		outcome = "approved"
	}
	m.payments.WithLabelValues(outcome).Inc()
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
