// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"
)

type violationReport struct {
	Username       string `json:"username"`
	ClientIP       string `json:"client_ip"`
	ViolationCount int    `json:"violation_count"`
	Reason         string `json:"reason"`
}

type reportResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type anticheatLogEntry struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ClientIP       string `json:"client_ip"`
	ViolationCount int    `json:"violation_count"`
	Reason         string `json:"reason"`
	CreatedAt      string `json:"created_at"`
}

type anticheatLogsResponse struct {
	Logs []anticheatLogEntry `json:"logs"`
}

func (s *Server) handleAnticheatReport(w http.ResponseWriter, r *http.Request) {
	var req violationReport
	if err := decode(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	report, err := s.anticheat.Record(r.Context(), req.Username, req.ClientIP, req.ViolationCount, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.AnticheatReports.Inc()
	}
	s.writeJSON(w, http.StatusOK, reportResponse{
		Message: "violation recorded",
		ID:      report.ID.String(),
	})
}

func (s *Server) handleAnticheatLogs(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("username")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	reports, err := s.anticheat.Logs(r.Context(), handle, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	logs := make([]anticheatLogEntry, 0, len(reports))
	for _, rep := range reports {
		logs = append(logs, anticheatLogEntry{
			ID:             rep.ID.String(),
			Username:       rep.Handle,
			ClientIP:       rep.ClientIP,
			ViolationCount: rep.ViolationCount,
			Reason:         rep.Reason,
			CreatedAt:      rep.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, anticheatLogsResponse{Logs: logs})
}
