// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package httpapi is the HTTP surface (component C0): a chi router
// wiring /v1/messages, /v1/messages/count_tokens, /v1/models, and the
// health endpoints onto the translator/bedrock/ptc/standalone services.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/aws-samples/bedrock-anthropic-gateway/internal/bedrock"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/config"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/metrics"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/modelmap"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/ptc"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/sandbox"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/standalone"
	"github.com/aws-samples/bedrock-anthropic-gateway/internal/translator"
)

// Server bundles everything a request handler needs.
type Server struct {
	cfg        *config.Config
	resolver   *modelmap.Resolver
	upstream   *bedrock.Client
	sandbox    *sandbox.Store
	ptc        *ptc.Service
	standalone *standalone.Service
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
}

// New builds the Server and wires its chi router.
func New(cfg *config.Config, resolver *modelmap.Resolver, upstream *bedrock.Client, sb *sandbox.Store, ptcSvc *ptc.Service, standaloneSvc *standalone.Service, m *metrics.Metrics, log *zap.SugaredLogger) *Server {
	return &Server{cfg: cfg, resolver: resolver, upstream: upstream, sandbox: sb, ptc: ptcSvc, standalone: standaloneSvc, metrics: m, log: log}
}

// Router builds the chi mux for this server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/messages/count_tokens", s.handleCountTokens)
	r.Get("/v1/models", s.handleListModels)
	r.Get("/v1/models/{id}", s.handleGetModel)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleHealth)
	r.Get("/liveness", s.handleHealth)

	return r
}

// accessLog logs method, path, status, and latency at INFO, keyed by
// the chi request id.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Infow("request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
