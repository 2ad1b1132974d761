// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

type registerRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	MachineID string `json:"machine_id"`
}

type registerResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	MachineID string `json:"machine_id"`
}

type loginResponse struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type verifyRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	ClientIP string `json:"client_ip"`
}

type verifyPlayerRequest struct {
	Username string `json:"username"`
	ClientIP string `json:"client_ip"`
}

type createLaunchTokenRequest struct {
	Username string `json:"username"`
	// Token is the session token proving a live launcher login.
	Token string `json:"token"`
}

type createLaunchTokenResponse struct {
	LaunchToken string `json:"launch_token"`
	ExpiresAt   string `json:"expires_at"`
}

type verifyLaunchTokenRequest struct {
	Username    string `json:"username"`
	LaunchToken string `json:"launch_token"`
}

// verifyResponse is the uniform shape for all verification predicates:
// mismatches are 200s with valid=false and a reason, never HTTP faults.
type verifyResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		s.countRegistration("rejected")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	account, err := s.auth.Register(r.Context(), req.Username, req.Password, req.MachineID)
	if err != nil {
		s.countRegistration("failure")
		s.writeError(w, err)
		return
	}

	s.countRegistration("success")
	s.writeJSON(w, http.StatusOK, registerResponse{
		Message:  "registered",
		Username: account.Handle,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.countLogin("rejected")
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		s.countLogin("failure")
		s.writeError(w, err)
		return
	}

	s.countLogin("success")
	s.writeJSON(w, http.StatusOK, loginResponse{
		Message:   "login ok",
		Username:  session.Handle,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := s.auth.VerifySession(r.Context(), req.Username, req.Token, req.ClientIP)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeVerifyResult(w, "session", result)
}

func (s *Server) handleVerifyPlayer(w http.ResponseWriter, r *http.Request) {
	var req verifyPlayerRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := s.auth.VerifyPlayer(r.Context(), req.Username, req.ClientIP)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeVerifyResult(w, "player", result)
}

func (s *Server) handleCreateLaunchToken(w http.ResponseWriter, r *http.Request) {
	var req createLaunchTokenRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	token, err := s.launch.Create(r.Context(), req.Username, req.Token, clientIP(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.LaunchTokensIssued.Inc()
	}
	s.writeJSON(w, http.StatusOK, createLaunchTokenResponse{
		LaunchToken: token.Token,
		ExpiresAt:   token.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVerifyLaunchToken(w http.ResponseWriter, r *http.Request) {
	var req verifyLaunchTokenRequest
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := s.launch.Redeem(r.Context(), req.Username, req.LaunchToken)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeVerifyResult(w, "launch", result)
}

// writeVerifyResult renders a VerifyResult as the uniform 200 response and
// counts the outcome.
func (s *Server) writeVerifyResult(w http.ResponseWriter, kind string, result auth.VerifyResult) {
	if s.metrics != nil {
		outcome := "invalid"
		if result.Valid {
			outcome = "valid"
		}
		s.metrics.VerificationsTotal.WithLabelValues(kind, outcome).Inc()
	}

	if result.Valid {
		s.writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Username: result.Handle})
		return
	}
	s.writeJSON(w, http.StatusOK, verifyResponse{Valid: false, Reason: result.Reason})
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}
