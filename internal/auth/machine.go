// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultMaxAccountsPerMachine is the default number of accounts a single
// machine identifier may register.
const DefaultMaxAccountsPerMachine = 2

// MachineBinding records that a machine identifier has registered an
// account. The (machine identifier, handle) pair is unique.
type MachineBinding struct {
	ID        ulid.ULID
	MachineID string
	Handle    string
	CreatedAt time.Time
}

// MachineAccounts groups the handles bound to one machine identifier.
type MachineAccounts struct {
	MachineID string
	Handles   []string
}

// CanRegister reports whether a machine with the given existing binding
// count may register another account under the limit. Repositories call
// it inside the registration transaction so every backend applies the
// same comparison.
func CanRegister(existing, limit int) bool {
	return existing < limit
}

// MachineBindingRepository manages machine binding persistence. Binding
// rows are inserted by AccountRepository.CreateWithBinding; this interface
// covers reads and administrative unbinding.
type MachineBindingRepository interface {
	// CountByMachine returns the number of accounts bound to a machine.
	CountByMachine(ctx context.Context, machineID string) (int, error)

	// CountMachines returns the number of distinct machine identifiers.
	CountMachines(ctx context.Context) (int64, error)

	// ListGrouped returns all bindings grouped by machine identifier,
	// most recently bound machines first.
	ListGrouped(ctx context.Context) ([]MachineAccounts, error)

	// DeleteByMachine removes every binding for a machine identifier and
	// returns the number of bindings removed.
	DeleteByMachine(ctx context.Context, machineID string) (int64, error)
}
