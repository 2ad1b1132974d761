// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package postgres implements the anticheat repository on PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/anticheat"
)

// Querier is the subset of pgxpool.Pool this repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReportRepository implements anticheat.ReportRepository using PostgreSQL.
type ReportRepository struct {
	db Querier
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db Querier) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create stores a new report.
func (r *ReportRepository) Create(ctx context.Context, report *anticheat.Report) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO anticheat_reports (id, handle, client_ip, violation_count, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		report.ID.String(),
		report.Handle,
		report.ClientIP,
		report.ViolationCount,
		report.Reason,
		report.CreatedAt,
	)
	if err != nil {
		return oops.Code("ANTICHEAT_CREATE_FAILED").
			With("handle", report.Handle).
			Wrap(err)
	}
	return nil
}

// List returns the newest reports, optionally filtered by handle.
func (r *ReportRepository) List(ctx context.Context, handle string, limit int) ([]*anticheat.Report, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if handle == "" {
		rows, err = r.db.Query(ctx, `
			SELECT id, handle, client_ip, violation_count, reason, created_at
			FROM anticheat_reports
			ORDER BY created_at DESC
			LIMIT $1
		`, limit)
	} else {
		rows, err = r.db.Query(ctx, `
			SELECT id, handle, client_ip, violation_count, reason, created_at
			FROM anticheat_reports
			WHERE handle = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, handle, limit)
	}
	if err != nil {
		return nil, oops.Code("ANTICHEAT_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var reports []*anticheat.Report
	for rows.Next() {
		var (
			idStr     string
			report    anticheat.Report
			createdAt time.Time
		)
		if err := rows.Scan(&idStr, &report.Handle, &report.ClientIP, &report.ViolationCount, &report.Reason, &createdAt); err != nil {
			return nil, oops.Code("ANTICHEAT_SCAN_FAILED").Wrap(err)
		}
		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("ANTICHEAT_INVALID_ID").
				With("id", idStr).
				Wrap(err)
		}
		report.ID = id
		report.CreatedAt = createdAt
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ANTICHEAT_ROWS_ERROR").Wrap(err)
	}

	return reports, nil
}

// Count returns the total number of reports.
func (r *ReportRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM anticheat_reports`).Scan(&count); err != nil {
		return 0, oops.Code("ANTICHEAT_COUNT_FAILED").Wrap(err)
	}
	return count, nil
}

// Compile-time interface check.
var _ anticheat.ReportRepository = (*ReportRepository)(nil)
