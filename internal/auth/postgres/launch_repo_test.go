// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

func testLaunchToken() *auth.LaunchToken {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &auth.LaunchToken{
		ID:        ulid.Make(),
		Handle:    "alice_01",
		Token:     "4cf50b51e3a04cb8a1f6c53419d483ad4cf50b51e3a04cb8a1f6c53419d483ad",
		ExpiresAt: now.Add(2 * time.Minute),
		CreatedAt: now,
	}
}

func TestLaunchTokenRepository_Replace(t *testing.T) {
	token := testLaunchToken()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM launch_tokens`).
		WithArgs(token.Handle).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO launch_tokens`).
		WithArgs(token.ID.String(), token.Handle, token.Token, false,
			token.ExpiresAt, token.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	repo := NewLaunchTokenRepository(mock)
	require.NoError(t, repo.Replace(context.Background(), token))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLaunchTokenRepository_Redeem(t *testing.T) {
	token := testLaunchToken()
	now := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      bool
		errMsg    string
	}{
		{
			name: "unused live token wins",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE launch_tokens`).
					WithArgs(token.Handle, token.Token, now).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
			want: true,
		},
		{
			name: "no matching row",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE launch_tokens`).
					WithArgs(token.Handle, token.Token, now).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			want: false,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE launch_tokens`).
					WithArgs(token.Handle, token.Token, now).
					WillReturnError(errors.New("connection reset"))
			},
			errMsg: "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewLaunchTokenRepository(mock)
			got, err := repo.Redeem(context.Background(), token.Handle, token.Token, now)

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLaunchTokenRepository_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM launch_tokens WHERE expires_at`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repo := NewLaunchTokenRepository(mock)
	removed, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
