// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHandle(t *testing.T) {
	tests := []struct {
		name    string
		handle  string
		wantErr bool
	}{
		{"valid simple", "alice", false},
		{"valid with digits", "alice_01", false},
		{"valid leading underscore", "_alice", false},
		{"valid max length", strings.Repeat("a", 16), false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 17), true},
		{"leading digit", "1alice", true},
		{"hyphen", "alice-01", true},
		{"space", "alice 01", true},
		{"non-ascii", "алиса", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHandle(tt.handle)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("12345"))
	assert.NoError(t, ValidatePassword("123456"))
	assert.NoError(t, ValidatePassword(strings.Repeat("x", 200)))
}

func TestNewAccount(t *testing.T) {
	account, err := NewAccount("alice_01", "$2a$10$fakehash", "MB-0FA2")
	require.NoError(t, err)

	assert.NotZero(t, account.ID)
	assert.Equal(t, "alice_01", account.Handle)
	assert.Equal(t, "MB-0FA2", account.MachineID)
	assert.False(t, account.CreatedAt.IsZero())
}

func TestNewAccount_Invalid(t *testing.T) {
	_, err := NewAccount("1alice", "$2a$10$fakehash", "MB-0FA2")
	assert.Error(t, err)

	_, err = NewAccount("alice_01", "", "MB-0FA2")
	assert.Error(t, err)

	_, err = NewAccount("alice_01", "$2a$10$fakehash", "")
	assert.Error(t, err)
}

func TestAccount_FailureTracking(t *testing.T) {
	account, err := NewAccount("alice_01", "$2a$10$fakehash", "MB-0FA2")
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for range LockoutThreshold - 1 {
		account.RecordFailure(now)
	}
	assert.False(t, account.IsLocked(now), "below threshold should not lock")

	account.RecordFailure(now)
	assert.True(t, account.IsLocked(now))
	require.NotNil(t, account.LockedUntil)
	assert.Equal(t, now.Add(LockoutDuration), *account.LockedUntil)

	// The lockout expires with the clock, not the wall.
	assert.False(t, account.IsLocked(now.Add(LockoutDuration+time.Second)))

	account.RecordSuccess(now)
	assert.False(t, account.IsLocked(now))
	assert.Zero(t, account.FailedAttempts)
	assert.Nil(t, account.LockedUntil)
}
