// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Handle validation constraints.
const (
	MinHandleLength = 3
	MaxHandleLength = 16

	// MinPasswordLength is the minimum accepted password length in bytes.
	MinPasswordLength = 6
)

// handleRegex matches handles that:
// - Start with a letter or underscore
// - Contain only letters, numbers, and underscores
var handleRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Account represents a registered player account.
type Account struct {
	ID             ulid.ULID
	Handle         string
	PasswordHash   string
	MachineID      string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates a validated Account instance.
func NewAccount(handle, passwordHash, machineID string) (*Account, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if machineID == "" {
		return nil, oops.Code("AUTH_INVALID_MACHINE").Errorf("machine identifier cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Handle:       handle,
		PasswordHash: passwordHash,
		MachineID:    machineID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsLocked returns true if the account is locked out at the given instant.
func (a *Account) IsLocked(now time.Time) bool {
	return IsLockedOut(a.LockedUntil, now)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (a *Account) RecordFailure(now time.Time) {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts, now)
	a.UpdatedAt = now
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess(now time.Time) {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = now
}

// ValidateHandle validates a handle against rules.
// Handle requirements:
// - Length: MinHandleLength to MaxHandleLength characters
// - Must not start with a digit
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateHandle(handle string) error {
	if handle == "" {
		return oops.Code("AUTH_INVALID_HANDLE").Errorf("handle cannot be empty")
	}
	if len(handle) < MinHandleLength {
		return oops.Code("AUTH_INVALID_HANDLE").
			With("min", MinHandleLength).
			Errorf("handle must be at least %d characters", MinHandleLength)
	}
	if len(handle) > MaxHandleLength {
		return oops.Code("AUTH_INVALID_HANDLE").
			With("max", MaxHandleLength).
			Errorf("handle must be at most %d characters", MaxHandleLength)
	}
	if !handleRegex.MatchString(handle) {
		return oops.Code("AUTH_INVALID_HANDLE").
			Errorf("handle must not start with a digit and may contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidatePassword validates the shape of a plaintext password before it
// ever reaches the hasher or storage.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// CreateWithBinding stores a new account and its machine binding as one
	// atomic unit. It fails with ErrDuplicateHandle if the handle exists and
	// with ErrMachineLimit if the machine already has maxPerMachine bound
	// accounts; the count check and both inserts are a single transaction.
	CreateWithBinding(ctx context.Context, account *Account, maxPerMachine int) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByHandle retrieves an account by its exact handle.
	GetByHandle(ctx context.Context, handle string) (*Account, error)

	// Update updates an existing account.
	Update(ctx context.Context, account *Account) error

	// Delete removes an account together with its machine bindings and
	// session tokens, in one transaction. No orphaned rows survive.
	Delete(ctx context.Context, id ulid.ULID) error

	// List returns a page of accounts whose handle contains search
	// (empty matches all), newest first, plus the total match count.
	List(ctx context.Context, search string, offset, limit int) ([]*Account, int64, error)

	// Count returns the total number of accounts.
	Count(ctx context.Context) (int64, error)
}
