// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package anticheat receives violation reports from the game-server mod.
// The core is write-only toward this log; reading it back is an admin
// concern.
package anticheat

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxReasonLength bounds the free-text reason accepted from the mod.
const MaxReasonLength = 200

// Report is one violation observation reported by the game server.
type Report struct {
	ID             ulid.ULID
	Handle         string
	ClientIP       string
	ViolationCount int
	Reason         string
	CreatedAt      time.Time
}

// NewReport creates a validated Report instance.
func NewReport(handle, clientIP string, violationCount int, reason string) (*Report, error) {
	if handle == "" {
		return nil, oops.Code("ANTICHEAT_INVALID_REPORT").Errorf("handle cannot be empty")
	}
	if clientIP == "" {
		return nil, oops.Code("ANTICHEAT_INVALID_REPORT").Errorf("client IP cannot be empty")
	}
	if violationCount < 0 {
		return nil, oops.Code("ANTICHEAT_INVALID_REPORT").Errorf("violation count cannot be negative")
	}
	if reason == "" {
		return nil, oops.Code("ANTICHEAT_INVALID_REPORT").Errorf("reason cannot be empty")
	}
	if len(reason) > MaxReasonLength {
		reason = reason[:MaxReasonLength]
	}

	return &Report{
		ID:             ulid.Make(),
		Handle:         handle,
		ClientIP:       clientIP,
		ViolationCount: violationCount,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}, nil
}

// ReportRepository manages violation report persistence.
type ReportRepository interface {
	// Create stores a new report.
	Create(ctx context.Context, report *Report) error

	// List returns the newest reports, optionally filtered by handle
	// (empty matches all), capped at limit.
	List(ctx context.Context, handle string, limit int) ([]*Report, error)

	// Count returns the total number of reports.
	Count(ctx context.Context) (int64, error)
}
