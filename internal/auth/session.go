// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTTL is the lifetime of a session token issued at login.
const DefaultSessionTTL = 24 * time.Hour

// SessionToken is the long-lived proof of an authenticated login, scoped
// to the network address it was issued from. At most one session token is
// live per account: issuing a new one replaces all prior ones.
type SessionToken struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Handle    string
	Token     string
	ClientIP  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSessionToken creates a validated SessionToken instance. clientIP must
// already be normalized via NormalizeIP.
func NewSessionToken(accountID ulid.ULID, handle, token, clientIP string, expiresAt time.Time) (*SessionToken, error) {
	if accountID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT").Errorf("account ID cannot be zero")
	}
	if handle == "" {
		return nil, oops.Code("SESSION_INVALID_HANDLE").Errorf("handle cannot be empty")
	}
	if token == "" {
		return nil, oops.Code("SESSION_INVALID_TOKEN").Errorf("token cannot be empty")
	}
	if clientIP == "" {
		return nil, oops.Code("SESSION_INVALID_IP").Errorf("client IP cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &SessionToken{
		ID:        ulid.Make(),
		AccountID: accountID,
		Handle:    handle,
		Token:     token,
		ClientIP:  clientIP,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given
// time. Expiry is a read-time predicate; expired rows are treated as
// absent, never merely flagged.
func (s *SessionToken) IsExpiredAt(t time.Time) bool {
	return t.After(s.ExpiresAt)
}

// TokenSigner mints session token strings. Tokens are HS256-signed JWTs
// binding the handle, the normalized client address, and the expiry, so
// any modification to one of the three invalidates the token.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a TokenSigner with the given signing secret.
func NewTokenSigner(secret []byte) (*TokenSigner, error) {
	if len(secret) == 0 {
		return nil, oops.Code("AUTH_NO_SECRET").Errorf("token signing secret cannot be empty")
	}
	return &TokenSigner{secret: secret}, nil
}

// Sign mints a token string for the handle, bound to the normalized client
// address and the expiry timestamp. The jti claim makes every minted token
// unique even when two logins share the same issue instant, so replacing a
// session always changes the token string.
func (ts *TokenSigner) Sign(handle, clientIP string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"jti": ulid.Make().String(),
		"sub": handle,
		"ip":  clientIP,
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ts.secret)
	if err != nil {
		return "", oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return token, nil
}

// Verification reason strings returned to the game server. These are part
// of the external contract and deliberately coarse where coarseness is a
// security property.
const (
	ReasonTokenNotFound   = "token not found"
	ReasonTokenExpired    = "token expired"
	ReasonHandleMismatch  = "handle mismatch"
	ReasonIPMismatch      = "IP address mismatch"
	ReasonAccountNotFound = "account not found"
	ReasonNotLoggedIn     = "not logged in or session expired; log in through the launcher"
	ReasonIPChanged       = "IP address mismatch; log in again through the launcher"
	ReasonLaunchInvalid   = "launch token invalid, expired, or already used"
)

// VerifyResult is the soft outcome of a verification predicate. Invalid
// results carry a human-readable reason; they are ordinary values, not
// faults.
type VerifyResult struct {
	Valid  bool
	Handle string
	Reason string
}

// Verified returns a valid result for the handle.
func Verified(handle string) VerifyResult {
	return VerifyResult{Valid: true, Handle: handle}
}

// NotVerified returns an invalid result with the given reason.
func NotVerified(reason string) VerifyResult {
	return VerifyResult{Valid: false, Reason: reason}
}

// SessionTokenRepository manages session token persistence.
type SessionTokenRepository interface {
	// Replace deletes all session tokens for the owning account and inserts
	// the new one, as one atomic replace.
	Replace(ctx context.Context, session *SessionToken) error

	// GetByToken retrieves a session by its exact token string.
	GetByToken(ctx context.Context, token string) (*SessionToken, error)

	// GetLiveByAccount retrieves the account's newest session token that is
	// not expired at the given instant. Returns ErrNotFound when none is
	// live.
	GetLiveByAccount(ctx context.Context, accountID ulid.ULID, now time.Time) (*SessionToken, error)

	// UpdateClientIP rewrites the stored address for a session in place.
	UpdateClientIP(ctx context.Context, id ulid.ULID, clientIP string) error

	// ListLive returns a page of unexpired sessions, newest first, plus the
	// total live count.
	ListLive(ctx context.Context, now time.Time, offset, limit int) ([]*SessionToken, int64, error)

	// CountLive returns the number of unexpired sessions.
	CountLive(ctx context.Context, now time.Time) (int64, error)

	// DeleteExpired removes sessions expired at the given instant and
	// returns the count of deleted records. Storage hygiene only; expiry
	// is checked lazily at verification time.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
