// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

type statsResponse struct {
	Accounts      int64 `json:"accounts"`
	Machines      int64 `json:"machines"`
	LiveSessions  int64 `json:"live_sessions"`
	AnticheatLogs int64 `json:"anticheat_logs"`
}

type accountEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	MachineID string `json:"machine_id"`
	CreatedAt string `json:"created_at"`
}

type accountListResponse struct {
	Total    int64          `json:"total"`
	Accounts []accountEntry `json:"accounts"`
}

type sessionEntry struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	ClientIP  string `json:"client_ip"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

type sessionListResponse struct {
	Total    int64          `json:"total"`
	Sessions []sessionEntry `json:"sessions"`
}

type machineEntry struct {
	MachineID string   `json:"machine_id"`
	Usernames []string `json:"usernames"`
	Count     int      `json:"count"`
}

type machineListResponse struct {
	Total    int            `json:"total"`
	Machines []machineEntry `json:"machines"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type unbindResponse struct {
	Message string `json:"message"`
	Removed int64  `json:"removed"`
}

type purgeResponse struct {
	SessionsPurged     int64 `json:"sessions_purged"`
	LaunchTokensPurged int64 `json:"launch_tokens_purged"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	logs, err := s.anticheat.Count(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Accounts:      stats.Accounts,
		Machines:      stats.Machines,
		LiveSessions:  stats.LiveSessions,
		AnticheatLogs: logs,
	})
}

func (s *Server) handleAdminListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	accounts, total, err := s.admin.ListAccounts(r.Context(), q.Get("search"), page, size)
	if err != nil {
		s.writeError(w, err)
		return
	}

	entries := make([]accountEntry, 0, len(accounts))
	for _, a := range accounts {
		entries = append(entries, accountEntry{
			ID:        a.ID.String(),
			Username:  a.Handle,
			MachineID: a.MachineID,
			CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, accountListResponse{Total: total, Accounts: entries})
}

func (s *Server) handleAdminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed account id"})
		return
	}

	if err := s.admin.DeleteAccount(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "account deleted"})
}

func (s *Server) handleAdminListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	sessions, total, err := s.admin.ListSessions(r.Context(), page, size)
	if err != nil {
		s.writeError(w, err)
		return
	}

	entries := make([]sessionEntry, 0, len(sessions))
	for _, sess := range sessions {
		entries = append(entries, sessionEntry{
			ID:        sess.ID.String(),
			Username:  sess.Handle,
			ClientIP:  sess.ClientIP,
			CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
			ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, sessionListResponse{Total: total, Sessions: entries})
}

func (s *Server) handleAdminListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := s.admin.ListMachines(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	entries := make([]machineEntry, 0, len(machines))
	for _, m := range machines {
		entries = append(entries, machineEntry{
			MachineID: m.MachineID,
			Usernames: m.Handles,
			Count:     len(m.Handles),
		})
	}
	s.writeJSON(w, http.StatusOK, machineListResponse{Total: len(entries), Machines: entries})
}

func (s *Server) handleAdminUnbindMachine(w http.ResponseWriter, r *http.Request) {
	removed, err := s.admin.UnbindMachine(r.Context(), r.PathValue("machineID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, unbindResponse{Message: "machine unbound", Removed: removed})
}

func (s *Server) handleAdminPurge(w http.ResponseWriter, r *http.Request) {
	sessions, launches, err := s.admin.PurgeExpired(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, purgeResponse{
		SessionsPurged:     sessions,
		LaunchTokensPurged: launches,
	})
}
