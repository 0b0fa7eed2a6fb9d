package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the service. Every method is
// safe on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	refreshTotal    *prometheus.CounterVec
	authzDecisions  *prometheus.CounterVec
	decryptFailures *prometheus.CounterVec
	edgeRedirects   prometheus.Counter
	signInTotal     *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and auth collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatekeeper_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_refresh_total",
		Help: "Access token refresh attempts by outcome.",
	}, []string{"outcome"})
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_authz_decisions_total",
		Help: "Route authorization decisions by outcome and reason.",
	}, []string{"outcome", "reason"})
	decrypt := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_session_decrypt_failures_total",
		Help: "Session cookies that could not be opened, by cookie.",
	}, []string{"cookie"})
	edge := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_edge_redirects_total",
		Help: "Requests redirected to sign-in by the edge gate.",
	})
	signIn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_signin_total",
		Help: "Sign-in attempts by flow and outcome.",
	}, []string{"flow", "outcome"})
	registry.MustRegister(requests, duration, refresh, decisions, decrypt, edge, signIn)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		refreshTotal:    refresh,
		authzDecisions:  decisions,
		decryptFailures: decrypt,
		edgeRedirects:   edge,
		signInTotal:     signIn,
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

// Middleware records request count and latency per route.
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

// RecordRefresh counts a refresh outcome.
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthzDecision counts a decision given as "outcome:reason".
func (m *Metrics) RecordAuthzDecision(decision string) {
	if m == nil {
		return
	}
	outcome, reason, _ := strings.Cut(decision, ":")
	m.authzDecisions.WithLabelValues(outcome, reason).Inc()
}

// RecordDecryptFailure counts a cookie that failed to open.
func (m *Metrics) RecordDecryptFailure(cookie string) {
	if m == nil {
		return
	}
	m.decryptFailures.WithLabelValues(cookie).Inc()
}

// RecordEdgeRedirect counts an edge redirect to sign-in.
func (m *Metrics) RecordEdgeRedirect() {
	if m == nil {
		return
	}
	m.edgeRedirects.Inc()
}

// RecordSignIn counts a sign-in attempt.
func (m *Metrics) RecordSignIn(flow, outcome string) {
	if m == nil {
		return
	}
	m.signInTotal.WithLabelValues(flow, outcome).Inc()
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
