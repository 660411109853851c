// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package metrics is the minimal Prometheus shim carried as ambient
// stack (component C10): request latency by route/status, and a gauge
// tracking live sandbox sessions. Full observability/usage aggregation
// is out of scope (see spec.md §1 Non-goals); this is the baseline a
// production Go service carries regardless.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the proxy's Prometheus collectors.
type Metrics struct {
	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	sandboxSessions prometheus.Gauge
}

// New registers the proxy's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bedrock_gateway_request_duration_seconds",
			Help:    "Latency of HTTP requests handled by the proxy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bedrock_gateway_requests_total",
			Help: "Count of HTTP requests handled by the proxy.",
		}, []string{"route", "status"}),
		sandboxSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bedrock_gateway_sandbox_sessions",
			Help: "Number of live sandbox sessions.",
		}),
	}
}

// SetSandboxSessions reports the current count of live sandbox sessions.
func (m *Metrics) SetSandboxSessions(n int) { m.sandboxSessions.Set(float64(n)) }

// Middleware records request latency and count, keyed by chi's matched
// route pattern (not the raw path, to keep cardinality bounded).
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(ww.Status())
		m.requestDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, status).Inc()
	})
}
