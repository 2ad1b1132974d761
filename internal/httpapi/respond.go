// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/auth"
	"github.com/Maggotxy/cube-recall/pkg/errutil"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client is gone
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Verification mismatches
// never come through here; they are values, not errors.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateHandle):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "handle already registered"})
	case errors.Is(err, auth.ErrMachineLimit):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "machine already has the maximum number of bound accounts"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid handle or password"})
	case errors.Is(err, auth.ErrAccountLocked):
		s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "account temporarily locked"})
	case errors.Is(err, auth.ErrUnauthorized):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "session token invalid or expired"})
	case errors.Is(err, auth.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		// Validation failures carry *_INVALID_* codes and are the caller's
		// fault, not a server fault.
		if oopsErr, ok := oops.AsOops(err); ok {
			if code, isStr := oopsErr.Code().(string); isStr && strings.Contains(code, "_INVALID_") {
				s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: oopsErr.Error()})
				return
			}
		}
		errutil.LogError(slog.Default(), "request failed", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// decode parses a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return oops.Code("API_BAD_REQUEST").Wrapf(err, "decoding request body")
	}
	return nil
}

// clientIP extracts the connection's remote address, normalized so that
// loopback variants compare equal.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return auth.NormalizeIP(r.RemoteAddr)
	}
	return auth.NormalizeIP(host)
}
