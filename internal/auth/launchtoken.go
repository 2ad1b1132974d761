// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Launch token configuration.
const (
	// LaunchTokenBytes is the random token length; 32 bytes = 64 hex chars.
	LaunchTokenBytes = 32

	// DefaultLaunchTokenTTL is the window between the launcher requesting a
	// token and the game client presenting it to the server.
	DefaultLaunchTokenTTL = 2 * time.Minute
)

// LaunchToken is a one-time bridge credential: minted from a live session
// by the launcher, redeemed exactly once by the game server when the
// client connects.
type LaunchToken struct {
	ID        ulid.ULID
	Handle    string
	Token     string
	Used      bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewLaunchToken creates a LaunchToken for the handle with a fresh random
// token string, expiring ttl after now.
func NewLaunchToken(handle string, now time.Time, ttl time.Duration) (*LaunchToken, error) {
	if handle == "" {
		return nil, oops.Code("LAUNCH_INVALID_HANDLE").Errorf("handle cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("LAUNCH_INVALID_TTL").Errorf("ttl must be positive")
	}

	token, err := GenerateLaunchToken()
	if err != nil {
		return nil, err
	}

	return &LaunchToken{
		ID:        ulid.Make(),
		Handle:    handle,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// IsRedeemableAt returns true if the token could still be redeemed at the
// given instant: unused and not past expiry.
func (lt *LaunchToken) IsRedeemableAt(t time.Time) bool {
	return !lt.Used && t.Before(lt.ExpiresAt)
}

// GenerateLaunchToken creates a secure random opaque token string.
func GenerateLaunchToken() (string, error) {
	buf := make([]byte, LaunchTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("LAUNCH_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", LaunchTokenBytes).
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}

// LaunchTokenRepository manages launch token persistence.
type LaunchTokenRepository interface {
	// Replace deletes any unused launch tokens for the owning handle and
	// inserts the new one, as one atomic replace. At most one unused launch
	// token is outstanding per handle.
	Replace(ctx context.Context, token *LaunchToken) error

	// Redeem atomically marks the matching token used and reports whether
	// it was redeemable: the row must match handle and token, be unused,
	// and not be expired at the given instant. The check and the mark-used
	// write are one atomic step; under concurrent redemption exactly one
	// caller wins.
	Redeem(ctx context.Context, handle, token string, now time.Time) (bool, error)

	// DeleteExpired removes tokens expired at the given instant and returns
	// the count of deleted records. Storage hygiene only.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
