// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package postgres implements the auth repositories on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

// Querier is the subset of pgxpool.Pool the repositories need. Satisfied
// by *pgxpool.Pool and by pgxmock pools in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateWithBinding stores a new account and its machine binding in one
// transaction. An advisory transaction lock on the machine identifier
// serializes concurrent registrations for the same machine, so the binding
// count check and the inserts form a single atomic unit: two concurrent
// registrations cannot both observe count < limit.
func (r *AccountRepository) CreateWithBinding(ctx context.Context, account *auth.Account, maxPerMachine int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, account.MachineID)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "acquire machine lock").
			Wrap(err)
	}

	var count int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM machine_bindings WHERE machine_id = $1
	`, account.MachineID).Scan(&count)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "count machine bindings").
			Wrap(err)
	}
	if !auth.CanRegister(count, maxPerMachine) {
		return oops.Code("ACCOUNT_MACHINE_LIMIT").
			With("machine_id", account.MachineID).
			With("limit", maxPerMachine).
			Wrap(auth.ErrMachineLimit)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accounts (id, handle, password_hash, machine_id, failed_attempts, locked_until, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		account.ID.String(),
		account.Handle,
		account.PasswordHash,
		account.MachineID,
		account.FailedAttempts,
		account.LockedUntil,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE_HANDLE").
				With("handle", account.Handle).
				Wrap(auth.ErrDuplicateHandle)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("handle", account.Handle).
			Wrap(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO machine_bindings (id, machine_id, handle, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		ulid.Make().String(),
		account.MachineID,
		account.Handle,
		account.CreatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert machine binding").
			With("machine_id", account.MachineID).
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, handle, password_hash, machine_id, failed_attempts, locked_until, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByHandle retrieves an account by its exact handle.
func (r *AccountRepository) GetByHandle(ctx context.Context, handle string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, handle, password_hash, machine_id, failed_attempts, locked_until, created_at, updated_at
		FROM accounts
		WHERE handle = $1
	`, handle)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("handle", handle).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_HANDLE_FAILED").
			With("handle", handle).
			Wrap(err)
	}
	return account, nil
}

// Update updates an existing account.
func (r *AccountRepository) Update(ctx context.Context, account *auth.Account) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, failed_attempts = $3, locked_until = $4, updated_at = $5
		WHERE id = $1
	`,
		account.ID.String(),
		account.PasswordHash,
		account.FailedAttempts,
		account.LockedUntil,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes an account together with its machine bindings and session
// tokens, in one transaction.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "begin transaction").
			Wrap(err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	var handle string
	err = tx.QueryRow(ctx, `
		SELECT handle FROM accounts WHERE id = $1
	`, id.String()).Scan(&handle)
	if errors.Is(err, pgx.ErrNoRows) {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "get handle").
			With("id", id.String()).
			Wrap(err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM machine_bindings WHERE handle = $1`, handle); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete machine bindings").
			Wrap(err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM session_tokens WHERE account_id = $1`, id.String()); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete session tokens").
			Wrap(err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM launch_tokens WHERE handle = $1`, handle); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete launch tokens").
			Wrap(err)
	}
	if _, err = tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id.String()); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "commit transaction").
			Wrap(err)
	}
	return nil
}

// List returns a page of accounts whose handle contains search, newest
// first, plus the total match count.
func (r *AccountRepository) List(ctx context.Context, search string, offset, limit int) ([]*auth.Account, int64, error) {
	pattern := "%" + search + "%"

	var total int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM accounts WHERE handle LIKE $1
	`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "count matches").
			Wrap(err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, handle, password_hash, machine_id, failed_attempts, locked_until, created_at, updated_at
		FROM accounts
		WHERE handle LIKE $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, pattern, offset, limit)
	if err != nil {
		return nil, 0, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "query accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, 0, oops.Code("ACCOUNT_SCAN_FAILED").Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, oops.Code("ACCOUNT_ROWS_ERROR").Wrap(err)
	}

	return accounts, total, nil
}

// Count returns the total number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return 0, oops.Code("ACCOUNT_COUNT_FAILED").Wrap(err)
	}
	return total, nil
}

// scanAccount scans a single row into an Account. Callers are responsible
// for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr          string
		handle         string
		passwordHash   string
		machineID      string
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(&idStr, &handle, &passwordHash, &machineID, &failedAttempts, &lockedUntil, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:             id,
		Handle:         handle,
		PasswordHash:   passwordHash,
		MachineID:      machineID,
		FailedAttempts: failedAttempts,
		LockedUntil:    lockedUntil,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
