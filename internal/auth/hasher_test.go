// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	hasher := NewBcryptHasher()

	digest, err := hasher.Hash("secretpw99")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$2"), "expected bcrypt digest, got %q", digest)

	ok, err := hasher.Verify("secretpw99", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify("wrongpw000", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	hasher := NewBcryptHasher()

	_, err := hasher.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestBcryptHasher_TruncatesLongPasswords(t *testing.T) {
	hasher := NewBcryptHasher()

	long := strings.Repeat("a", 100)
	digest, err := hasher.Hash(long)
	require.NoError(t, err)

	// Only the first 72 bytes participate, so a password that shares them
	// verifies too.
	ok, err := hasher.Verify(strings.Repeat("a", 72)+"different-tail", digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBcryptHasher_LegacyDigest(t *testing.T) {
	hasher := NewBcryptHasher()

	// hex(sha256("a1b2c3salt" + "secretpw99"))
	legacy := "a1b2c3salt$8ffb1c8e6bfca6bdea10879a03c7b8445a06009191e4d9169b42abcff1ce1a18"

	ok, err := hasher.Verify("secretpw99", legacy)
	require.NoError(t, err)
	assert.True(t, ok, "legacy digest should keep verifying")

	ok, err = hasher.Verify("wrongpw000", legacy)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcryptHasher_LegacyFullPasswordParticipates(t *testing.T) {
	hasher := NewBcryptHasher()

	// The legacy scheme hashes the whole password; no 72-byte truncation.
	long := strings.Repeat("x", 80)
	sum := sha256.Sum256([]byte("salt" + long))
	sumDigest := "salt$" + hex.EncodeToString(sum[:])

	ok, err := hasher.Verify(long, sumDigest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = hasher.Verify(long[:72], sumDigest)
	require.NoError(t, err)
	assert.False(t, ok, "truncated password must not verify against legacy digest")
}

func TestBcryptHasher_MalformedDigest(t *testing.T) {
	hasher := NewBcryptHasher()

	_, err := hasher.Verify("secretpw99", "no-separator-here")
	assert.Error(t, err)
}

func TestBcryptHasher_NeedsUpgrade(t *testing.T) {
	hasher := NewBcryptHasher()

	digest, err := hasher.Hash("secretpw99")
	require.NoError(t, err)
	assert.False(t, hasher.NeedsUpgrade(digest))

	assert.True(t, hasher.NeedsUpgrade("a1b2c3salt$8ffb1c8e6bfca6bdea10879a03c7b8445a06009191e4d9169b42abcff1ce1a18"))
}
