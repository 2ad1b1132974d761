// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxBytes is the number of password bytes bcrypt consumes; anything
// beyond it is discarded before hashing, not rejected.
const bcryptMaxBytes = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a bcrypt digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest. It accepts both
	// bcrypt digests and the legacy "salt$sha256hex" format.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on
	// a malformed digest.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest should be rehashed to bcrypt.
	NeedsUpgrade(digest string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt, with a verify-only
// fallback for legacy salted SHA-256 digests issued before the bcrypt
// migration.
type BcryptHasher struct{}

// NewBcryptHasher creates a new BcryptHasher.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{}
}

// truncateForBcrypt discards password bytes past the bcrypt input limit.
func truncateForBcrypt(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return b
}

// Hash produces a bcrypt digest of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	digest, err := bcrypt.GenerateFromPassword(truncateForBcrypt(password), bcrypt.DefaultCost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(digest), nil
}

// Verify checks if the password matches the digest, detecting the format
// from the digest itself.
func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	if strings.HasPrefix(digest, "$2") {
		err := bcrypt.CompareHashAndPassword([]byte(digest), truncateForBcrypt(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	return verifyLegacy(password, digest)
}

// verifyLegacy checks a password against the pre-migration "salt$sha256hex"
// format: hex(sha256(salt + password)). The full password participates;
// the 72-byte truncation is a bcrypt-only constraint.
func verifyLegacy(password, digest string) (bool, error) {
	salt, want, found := strings.Cut(digest, "$")
	if !found {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unrecognized digest format")
	}

	sum := sha256.Sum256([]byte(salt + password))
	got := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

// NeedsUpgrade returns true if the digest is not bcrypt (i.e. legacy).
func (h *BcryptHasher) NeedsUpgrade(digest string) bool {
	return !strings.HasPrefix(digest, "$2")
}

// Compile-time interface check.
var _ PasswordHasher = (*BcryptHasher)(nil)
