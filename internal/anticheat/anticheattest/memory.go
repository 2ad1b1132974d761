// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package anticheattest provides an in-memory report repository for tests.
package anticheattest

import (
	"context"
	"sync"

	"github.com/Maggotxy/cube-recall/internal/anticheat"
)

// MemoryReports is a ReportRepository backed by a slice, newest first.
type MemoryReports struct {
	mu      sync.Mutex
	reports []*anticheat.Report
}

var _ anticheat.ReportRepository = (*MemoryReports)(nil)

// NewMemoryReports creates an empty MemoryReports.
func NewMemoryReports() *MemoryReports {
	return &MemoryReports{}
}

// Create stores a new report.
func (m *MemoryReports) Create(_ context.Context, report *anticheat.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dup := *report
	m.reports = append([]*anticheat.Report{&dup}, m.reports...)
	return nil
}

// List returns up to limit reports, optionally filtered by handle.
func (m *MemoryReports) List(_ context.Context, handle string, limit int) ([]*anticheat.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*anticheat.Report
	for _, r := range m.reports {
		if handle != "" && r.Handle != handle {
			continue
		}
		dup := *r
		out = append(out, &dup)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Count returns the total number of reports.
func (m *MemoryReports) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.reports)), nil
}
