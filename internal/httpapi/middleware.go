// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package httpapi

import (
	"net/http"
	"strconv"
)

// requireModKey gates mod-facing endpoints on the shared X-API-Key header.
// An empty configured key disables the check. The header value is compared
// and discarded; it must never reach the logs.
func (s *Server) requireModKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.ModAPIKey != "" && r.Header.Get("X-API-Key") != s.cfg.ModAPIKey {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "invalid API key"})
			return
		}
		next(w, r)
	}
}

// requireAdmin gates the admin surface on a bearer token. An unconfigured
// token disables the whole surface rather than opening it.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "admin surface not configured"})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.cfg.AdminToken {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument counts requests per endpoint and status.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		}
	}
}
