// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Maggotxy/cube-recall/internal/auth"
)

func TestMachineBindingRepository_CountByMachine(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM machine_bindings`).
		WithArgs("MB-0FA2").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	repo := NewMachineBindingRepository(mock)
	count, err := repo.CountByMachine(context.Background(), "MB-0FA2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineBindingRepository_CountMachines(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT machine_id\) FROM machine_bindings`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(5)))

	repo := NewMachineBindingRepository(mock)
	count, err := repo.CountMachines(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineBindingRepository_ListGrouped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT machine_id, handle`).
		WillReturnRows(pgxmock.NewRows([]string{"machine_id", "handle"}).
			AddRow("MB-0FA2", "alice_01").
			AddRow("MB-0FA2", "bob_02").
			AddRow("MB-7C31", "carol_03"))

	repo := NewMachineBindingRepository(mock)
	grouped, err := repo.ListGrouped(context.Background())
	require.NoError(t, err)

	require.Len(t, grouped, 2)
	assert.Equal(t, auth.MachineAccounts{
		MachineID: "MB-0FA2",
		Handles:   []string{"alice_01", "bob_02"},
	}, grouped[0])
	assert.Equal(t, auth.MachineAccounts{
		MachineID: "MB-7C31",
		Handles:   []string{"carol_03"},
	}, grouped[1])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachineBindingRepository_DeleteByMachine(t *testing.T) {
	t.Run("removes bindings", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM machine_bindings`).
			WithArgs("MB-0FA2").
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		repo := NewMachineBindingRepository(mock)
		removed, err := repo.DeleteByMachine(context.Background(), "MB-0FA2")
		require.NoError(t, err)
		assert.EqualValues(t, 2, removed)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unbound machine is not an error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM machine_bindings`).
			WithArgs("MB-NONE").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewMachineBindingRepository(mock)
		removed, err := repo.DeleteByMachine(context.Background(), "MB-NONE")
		require.NoError(t, err)
		assert.Zero(t, removed)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM machine_bindings`).
			WithArgs("MB-0FA2").
			WillReturnError(errors.New("connection refused"))

		repo := NewMachineBindingRepository(mock)
		_, err = repo.DeleteByMachine(context.Background(), "MB-0FA2")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
