// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

// MachineBindingRepository implements auth.MachineBindingRepository using
// PostgreSQL.
type MachineBindingRepository struct {
	db Querier
}

// NewMachineBindingRepository creates a new MachineBindingRepository.
func NewMachineBindingRepository(db Querier) *MachineBindingRepository {
	return &MachineBindingRepository{db: db}
}

// CountByMachine returns the number of accounts bound to a machine.
func (r *MachineBindingRepository) CountByMachine(ctx context.Context, machineID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM machine_bindings WHERE machine_id = $1
	`, machineID).Scan(&count)
	if err != nil {
		return 0, oops.Code("BINDING_COUNT_FAILED").
			With("machine_id", machineID).
			Wrap(err)
	}
	return count, nil
}

// CountMachines returns the number of distinct machine identifiers.
func (r *MachineBindingRepository) CountMachines(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT machine_id) FROM machine_bindings
	`).Scan(&count)
	if err != nil {
		return 0, oops.Code("BINDING_COUNT_MACHINES_FAILED").Wrap(err)
	}
	return count, nil
}

// ListGrouped returns all bindings grouped by machine identifier. Rows come
// back ordered by machine and binding age; grouping happens here.
func (r *MachineBindingRepository) ListGrouped(ctx context.Context) ([]auth.MachineAccounts, error) {
	rows, err := r.db.Query(ctx, `
		SELECT machine_id, handle
		FROM machine_bindings
		ORDER BY machine_id, created_at
	`)
	if err != nil {
		return nil, oops.Code("BINDING_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var grouped []auth.MachineAccounts
	for rows.Next() {
		var machineID, handle string
		if err := rows.Scan(&machineID, &handle); err != nil {
			return nil, oops.Code("BINDING_SCAN_FAILED").Wrap(err)
		}
		if len(grouped) == 0 || grouped[len(grouped)-1].MachineID != machineID {
			grouped = append(grouped, auth.MachineAccounts{MachineID: machineID})
		}
		last := &grouped[len(grouped)-1]
		last.Handles = append(last.Handles, handle)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("BINDING_ROWS_ERROR").Wrap(err)
	}

	return grouped, nil
}

// DeleteByMachine removes every binding for a machine identifier.
func (r *MachineBindingRepository) DeleteByMachine(ctx context.Context, machineID string) (int64, error) {
	result, err := r.db.Exec(ctx, `
		DELETE FROM machine_bindings WHERE machine_id = $1
	`, machineID)
	if err != nil {
		return 0, oops.Code("BINDING_DELETE_FAILED").
			With("machine_id", machineID).
			Wrap(err)
	}
	// No ErrNotFound when nothing matched - an unbound machine is a valid state.
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.MachineBindingRepository = (*MachineBindingRepository)(nil)
