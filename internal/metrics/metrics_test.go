// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRecordsRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/models/claude-haiku", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, metricFamilies)
}

func TestSetSandboxSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetSandboxSessions(3)
}
