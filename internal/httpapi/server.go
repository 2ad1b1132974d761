// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package httpapi exposes the credential server's HTTP surface: launcher
// registration and login, mod-facing verification endpoints gated by a
// shared API key, anticheat reporting, and the bearer-token admin surface.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/anticheat"
	"github.com/Maggotxy/cube-recall/internal/auth"
	"github.com/Maggotxy/cube-recall/internal/observability"
)

// Config carries the transport-level settings for the API server.
type Config struct {
	// Addr is the listen address in "host:port" form.
	Addr string
	// ModAPIKey gates mod-facing endpoints via the X-API-Key header.
	// Empty disables the gate.
	ModAPIKey string
	// AdminToken gates the admin surface via Authorization: Bearer.
	// Empty makes every admin endpoint answer 503.
	AdminToken string
}

// Server serves the credential HTTP API.
type Server struct {
	cfg       Config
	auth      *auth.Service
	launch    *auth.LaunchService
	admin     *auth.AdminService
	anticheat *anticheat.Service
	metrics   *observability.Metrics

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the API server. metrics may be nil; everything else is
// required.
func NewServer(cfg Config, authSvc *auth.Service, launchSvc *auth.LaunchService, adminSvc *auth.AdminService, anticheatSvc *anticheat.Service, metrics *observability.Metrics) (*Server, error) {
	if authSvc == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("auth service is required")
	}
	if launchSvc == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("launch service is required")
	}
	if adminSvc == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("admin service is required")
	}
	if anticheatSvc == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("anticheat service is required")
	}

	return &Server{
		cfg:       cfg,
		auth:      authSvc,
		launch:    launchSvc,
		admin:     adminSvc,
		anticheat: anticheatSvc,
		metrics:   metrics,
	}, nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.instrument("/auth/register", s.handleRegister))
	mux.HandleFunc("POST /auth/login", s.instrument("/auth/login", s.handleLogin))
	mux.HandleFunc("POST /auth/create-launch-token", s.instrument("/auth/create-launch-token", s.handleCreateLaunchToken))

	// Mod-facing verification endpoints share the X-API-Key gate.
	mux.HandleFunc("POST /auth/verify", s.instrument("/auth/verify", s.requireModKey(s.handleVerify)))
	mux.HandleFunc("POST /auth/verify-player", s.instrument("/auth/verify-player", s.requireModKey(s.handleVerifyPlayer)))
	mux.HandleFunc("POST /auth/verify-launch-token", s.instrument("/auth/verify-launch-token", s.requireModKey(s.handleVerifyLaunchToken)))
	mux.HandleFunc("POST /anticheat/report", s.instrument("/anticheat/report", s.requireModKey(s.handleAnticheatReport)))

	mux.HandleFunc("GET /anticheat/logs", s.instrument("/anticheat/logs", s.requireAdmin(s.handleAnticheatLogs)))
	mux.HandleFunc("GET /admin/stats", s.instrument("/admin/stats", s.requireAdmin(s.handleAdminStats)))
	mux.HandleFunc("GET /admin/accounts", s.instrument("/admin/accounts", s.requireAdmin(s.handleAdminListAccounts)))
	mux.HandleFunc("DELETE /admin/accounts/{id}", s.instrument("/admin/accounts/{id}", s.requireAdmin(s.handleAdminDeleteAccount)))
	mux.HandleFunc("GET /admin/sessions", s.instrument("/admin/sessions", s.requireAdmin(s.handleAdminListSessions)))
	mux.HandleFunc("GET /admin/machines", s.instrument("/admin/machines", s.requireAdmin(s.handleAdminListMachines)))
	mux.HandleFunc("DELETE /admin/machines/{machineID}", s.instrument("/admin/machines/{machineID}", s.requireAdmin(s.handleAdminUnbindMachine)))
	mux.HandleFunc("POST /admin/purge", s.instrument("/admin/purge", s.requireAdmin(s.handleAdminPurge)))

	return mux
}

// Start begins serving the API. It returns an error channel that receives
// any error from the HTTP server after startup; the channel is closed on
// graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" if stopped.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
