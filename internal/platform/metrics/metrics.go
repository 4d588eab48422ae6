// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes Prometheus instrumentation for HTTP traffic and the
authentication lifecycle.

Collectors live on a [Metrics] value registered against an explicit registry,
so tests build their own and nothing touches the global default registry.
Every recording method is nil-safe: a nil *Metrics records nothing.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warden"

// Metrics holds every collector of the service.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loginAttempts  *prometheus.CounterVec
	lockouts       prometheus.Counter
	tokensIssued   *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
	tokensRevoked  *prometheus.CounterVec
	sweepDeleted   *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	accessDenied   *prometheus.CounterVec
}

// New creates the collectors and registers them, plus Go runtime and process
// collectors, on a fresh registry.
func New() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "account_lockouts_total",
			Help:      "Accounts locked after repeated failed logins.",
		}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Signed tokens issued by kind.",
		}, []string{"kind"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Refresh token exchanges by outcome.",
		}, []string{"result"}),
		tokensRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_revoked_total",
			Help:      "Refresh tokens revoked by reason.",
		}, []string{"reason"}),
		sweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_sweep_deleted_total",
			Help:      "Token records removed by garbage-collection sweeps.",
		}, []string{"sweep"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and outcome.",
		}, []string{"kind", "result"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "Requests rejected by the authorization gate or route policies.",
		}, []string{"code"}),
	}

	metrics.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.httpInFlight, metrics.httpRequestsTotal, metrics.httpRequestDuration,
		metrics.loginAttempts, metrics.lockouts, metrics.tokensIssued, metrics.tokenRefreshes,
		metrics.tokensRevoked, metrics.sweepDeleted, metrics.notifications, metrics.accessDenied,
	)
	return metrics
}

// Registry exposes the underlying registry (tests gather from it).
func (metrics *Metrics) Registry() *prometheus.Registry { return metrics.registry }

// Handler serves the registry in the Prometheus exposition format.
func (metrics *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{Registry: metrics.registry})
}

// # HTTP

// Instrument records RPS, latency and in-flight requests. The route label is
// the chi pattern, not the raw path, to keep cardinality bounded.
func (metrics *Metrics) Instrument(next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		metrics.httpInFlight.Inc()
		defer metrics.httpInFlight.Dec()

		start := time.Now()
		recorder := &statusWriter{ResponseWriter: writer, code: http.StatusOK}
		next.ServeHTTP(recorder, request)

		route := "unmatched"
		if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := strconv.Itoa(recorder.code)
		metrics.httpRequestDuration.WithLabelValues(request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.httpRequestsTotal.WithLabelValues(request.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (writer *statusWriter) WriteHeader(code int) {
	writer.code = code
	writer.ResponseWriter.WriteHeader(code)
}

// # Authentication Lifecycle

// LoginAttempt counts a login by outcome (success, invalid_credentials, locked, inactive).
func (metrics *Metrics) LoginAttempt(result string) {
	if metrics == nil {
		return
	}
	metrics.loginAttempts.WithLabelValues(result).Inc()
}

// Lockout counts an account crossing the failure threshold.
func (metrics *Metrics) Lockout() {
	if metrics == nil {
		return
	}
	metrics.lockouts.Inc()
}

// TokenIssued counts a signed token of the given kind.
func (metrics *Metrics) TokenIssued(kind string) {
	if metrics == nil {
		return
	}
	metrics.tokensIssued.WithLabelValues(kind).Inc()
}

// TokenRefresh counts a refresh exchange by outcome.
func (metrics *Metrics) TokenRefresh(result string) {
	if metrics == nil {
		return
	}
	metrics.tokenRefreshes.WithLabelValues(result).Inc()
}

// TokensRevoked adds n revocations with the given reason.
func (metrics *Metrics) TokensRevoked(reason string, n int64) {
	if metrics == nil || n <= 0 {
		return
	}
	metrics.tokensRevoked.WithLabelValues(reason).Add(float64(n))
}

// SweepDeleted adds n records removed by the named sweep.
func (metrics *Metrics) SweepDeleted(sweep string, n int64) {
	if metrics == nil || n <= 0 {
		return
	}
	metrics.sweepDeleted.WithLabelValues(sweep).Add(float64(n))
}

// Notification counts a delivery attempt.
func (metrics *Metrics) Notification(kind string, ok bool) {
	if metrics == nil {
		return
	}
	result := "delivered"
	if !ok {
		result = "failed"
	}
	metrics.notifications.WithLabelValues(kind, result).Inc()
}

// AccessDenied counts a rejected request by error code.
func (metrics *Metrics) AccessDenied(code string) {
	if metrics == nil {
		return
	}
	metrics.accessDenied.WithLabelValues(code).Inc()
}
