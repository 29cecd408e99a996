// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the operator HTTP handler:
//
//   - GET /metrics serves the Prometheus gatherer
//   - GET /healthz reports "ok" while the server is accepting
//   - GET /sessions lists live sessions as JSON
func (s *Server) Handler() http.Handler {
	gatherer := s.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Get("/healthz", s.handleHealth)
	router.Get("/sessions", s.handleSessions)
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.accepting() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("stopping\n"))
		return
	}
	w.Write([]byte("ok\n"))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Sessions()); err != nil {
		s.logger().Debug("writing /sessions response", "error", err)
	}
}

// accepting reports whether the server is started and not stopping.
func (s *Server) accepting() bool {
	return s.listener != nil && !s.stopping.Load()
}
