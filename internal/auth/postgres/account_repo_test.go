// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

func testAccount() *auth.Account {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &auth.Account{
		ID:           ulid.Make(),
		Handle:       "alice_01",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		MachineID:    "MB-0FA2",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAccountRepository_CreateWithBinding(t *testing.T) {
	account := testAccount()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errMsg    string
	}{
		{
			name: "successful create",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`pg_advisory_xact_lock`).
					WithArgs(account.MachineID).
					WillReturnResult(pgxmock.NewResult("SELECT", 1))
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM machine_bindings`).
					WithArgs(account.MachineID).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(account.ID.String(), account.Handle, account.PasswordHash,
						account.MachineID, 0, pgxmock.AnyArg(), account.CreatedAt, account.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectExec(`INSERT INTO machine_bindings`).
					WithArgs(pgxmock.AnyArg(), account.MachineID, account.Handle, account.CreatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "machine at limit",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`pg_advisory_xact_lock`).
					WithArgs(account.MachineID).
					WillReturnResult(pgxmock.NewResult("SELECT", 1))
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM machine_bindings`).
					WithArgs(account.MachineID).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
				mock.ExpectRollback()
			},
			wantErr: auth.ErrMachineLimit,
		},
		{
			name: "duplicate handle",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin()
				mock.ExpectExec(`pg_advisory_xact_lock`).
					WithArgs(account.MachineID).
					WillReturnResult(pgxmock.NewResult("SELECT", 1))
				mock.ExpectQuery(`SELECT COUNT\(\*\) FROM machine_bindings`).
					WithArgs(account.MachineID).
					WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs(account.ID.String(), account.Handle, account.PasswordHash,
						account.MachineID, 0, pgxmock.AnyArg(), account.CreatedAt, account.UpdatedAt).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
				mock.ExpectRollback()
			},
			wantErr: auth.ErrDuplicateHandle,
		},
		{
			name: "begin fails",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			err = repo.CreateWithBinding(context.Background(), account, 2)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_GetByHandle(t *testing.T) {
	account := testAccount()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		rows := pgxmock.NewRows([]string{
			"id", "handle", "password_hash", "machine_id",
			"failed_attempts", "locked_until", "created_at", "updated_at",
		}).AddRow(
			account.ID.String(), account.Handle, account.PasswordHash, account.MachineID,
			3, nil, account.CreatedAt, account.UpdatedAt,
		)
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs(account.Handle).
			WillReturnRows(rows)

		repo := NewAccountRepository(mock)
		got, err := repo.GetByHandle(context.Background(), account.Handle)
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
		assert.Equal(t, account.Handle, got.Handle)
		assert.Equal(t, 3, got.FailedAttempts)
		assert.Nil(t, got.LockedUntil)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("nobody").
			WillReturnError(pgx.ErrNoRows)

		repo := NewAccountRepository(mock)
		_, err = repo.GetByHandle(context.Background(), "nobody")
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Update(t *testing.T) {
	account := testAccount()

	t.Run("success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(account.ID.String(), account.PasswordHash, account.FailedAttempts,
				pgxmock.AnyArg(), account.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.Update(context.Background(), account))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(account.ID.String(), account.PasswordHash, account.FailedAttempts,
				pgxmock.AnyArg(), account.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewAccountRepository(mock)
		err = repo.Update(context.Background(), account)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Delete(t *testing.T) {
	account := testAccount()

	t.Run("cascades to bindings and tokens", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT handle FROM accounts`).
			WithArgs(account.ID.String()).
			WillReturnRows(pgxmock.NewRows([]string{"handle"}).AddRow(account.Handle))
		mock.ExpectExec(`DELETE FROM machine_bindings`).
			WithArgs(account.Handle).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`DELETE FROM session_tokens`).
			WithArgs(account.ID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectExec(`DELETE FROM launch_tokens`).
			WithArgs(account.Handle).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`DELETE FROM accounts`).
			WithArgs(account.ID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.Delete(context.Background(), account.ID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT handle FROM accounts`).
			WithArgs(account.ID.String()).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		repo := NewAccountRepository(mock)
		err = repo.Delete(context.Background(), account.ID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_List(t *testing.T) {
	account := testAccount()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts`).
		WithArgs("%ali%").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT .+ FROM accounts`).
		WithArgs("%ali%", 0, 20).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "handle", "password_hash", "machine_id",
			"failed_attempts", "locked_until", "created_at", "updated_at",
		}).AddRow(
			account.ID.String(), account.Handle, account.PasswordHash, account.MachineID,
			0, nil, account.CreatedAt, account.UpdatedAt,
		))

	repo := NewAccountRepository(mock)
	accounts, total, err := repo.List(context.Background(), "ali", 0, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, accounts, 1)
	assert.Equal(t, account.Handle, accounts[0].Handle)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM accounts`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	repo := NewAccountRepository(mock)
	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, total)

	assert.NoError(t, mock.ExpectationsWereMet())
}
