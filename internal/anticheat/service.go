// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package anticheat

import (
	"context"

	"github.com/samber/oops"
)

// DefaultLogLimit is the default page size for the admin log listing.
const DefaultLogLimit = 50

// Service records and lists violation reports.
type Service struct {
	reports ReportRepository
}

// NewService creates a new Service.
func NewService(reports ReportRepository) (*Service, error) {
	if reports == nil {
		return nil, oops.Code("ANTICHEAT_NIL_DEPENDENCY").Errorf("reports repository is required")
	}
	return &Service{reports: reports}, nil
}

// Record validates and persists a violation report, returning the stored
// report with its assigned ID.
func (s *Service) Record(ctx context.Context, handle, clientIP string, violationCount int, reason string) (*Report, error) {
	report, err := NewReport(handle, clientIP, violationCount, reason)
	if err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, oops.Code("ANTICHEAT_RECORD_FAILED").
			With("handle", handle).
			Wrap(err)
	}
	return report, nil
}

// Logs returns the newest reports, optionally filtered by handle.
func (s *Service) Logs(ctx context.Context, handle string, limit int) ([]*Report, error) {
	if limit < 1 || limit > 100 {
		limit = DefaultLogLimit
	}
	reports, err := s.reports.List(ctx, handle, limit)
	if err != nil {
		return nil, oops.Code("ANTICHEAT_LIST_FAILED").Wrap(err)
	}
	return reports, nil
}

// Count returns the total number of stored reports.
func (s *Service) Count(ctx context.Context) (int64, error) {
	count, err := s.reports.Count(ctx)
	if err != nil {
		return 0, oops.Code("ANTICHEAT_COUNT_FAILED").Wrap(err)
	}
	return count, nil
}
