// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// ServiceConfig carries the tunables for Service. The zero value uses the
// defaults; Now defaults to time.Now and exists for deterministic tests.
type ServiceConfig struct {
	SessionTTL            time.Duration
	MaxAccountsPerMachine int
	Now                   func() time.Time
}

// Service provides registration, login, and session verification.
type Service struct {
	accounts      AccountRepository
	sessions      SessionTokenRepository
	hasher        PasswordHasher
	signer        *TokenSigner
	sessionTTL    time.Duration
	maxPerMachine int
	now           func() time.Time
}

// NewService creates a new Service.
func NewService(accounts AccountRepository, sessions SessionTokenRepository, hasher PasswordHasher, signer *TokenSigner, cfg ServiceConfig) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("accounts repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if signer == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("token signer is required")
	}

	s := &Service{
		accounts:      accounts,
		sessions:      sessions,
		hasher:        hasher,
		signer:        signer,
		sessionTTL:    cfg.SessionTTL,
		maxPerMachine: cfg.MaxAccountsPerMachine,
		now:           cfg.Now,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.maxPerMachine <= 0 {
		s.maxPerMachine = DefaultMaxAccountsPerMachine
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// dummyPasswordHash is used when an account doesn't exist to prevent timing
// attacks. We still run password verification to make response time
// consistent. This is NOT a real credential - it's a hash that is only ever
// compared when the login is already doomed.
//
//nolint:gosec // G101: intentionally fake digest for timing attack prevention, not a credential.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Register creates a new account bound to the supplied machine identifier.
// Fails with ErrDuplicateHandle if the handle exists and with
// ErrMachineLimit if the machine already carries the maximum number of
// accounts; both checks happen atomically with the inserts.
func (s *Service) Register(ctx context.Context, handle, password, machineID string) (*Account, error) {
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(handle, digest, machineID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.CreateWithBinding(ctx, account, s.maxPerMachine); err != nil {
		if errors.Is(err, ErrDuplicateHandle) || errors.Is(err, ErrMachineLimit) {
			return nil, err //nolint:wrapcheck // Repo wraps with oops codes already
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create account with binding").
			With("handle", handle).
			Wrap(err)
	}

	return account, nil
}

// Login authenticates an account and issues a fresh session token, scoped
// to the observed address and replacing any prior session for the account.
// Uses constant-time operations to prevent timing-based handle enumeration.
func (s *Service) Login(ctx context.Context, handle, password, remoteIP string) (*SessionToken, error) {
	now := s.now()
	account, lookupErr := s.accounts.GetByHandle(ctx, handle)

	// Determine which digest to verify against (real or dummy for timing
	// attack prevention).
	var targetHash string
	var accountExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			targetHash = dummyPasswordHash
			accountExists = false
		} else {
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get account by handle").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	// Always verify the password so that response time does not reveal
	// whether the handle exists.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !accountExists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// The same undifferentiated error covers both an unknown handle and a
	// wrong password.
	if !accountExists || !valid {
		if accountExists {
			account.RecordFailure(now)
			_ = s.accounts.Update(ctx, account) //nolint:errcheck // Best effort
		}
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// Check lockout AFTER password verification to maintain constant time.
	if account.IsLocked(now) {
		limit := CheckFailures(account.FailedAttempts, account.LockedUntil, now)
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", account.LockedUntil).
			With("retry_after", limit.LockoutRemaining).
			Wrap(ErrAccountLocked)
	}

	account.RecordSuccess(now)

	// Transparently rehash legacy digests with the current scheme.
	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			account.PasswordHash = newHash
		}
	}

	// Login succeeds even if the bookkeeping update fails.
	_ = s.accounts.Update(ctx, account) //nolint:errcheck // Best effort

	clientIP := NormalizeIP(remoteIP)
	expiresAt := now.Add(s.sessionTTL)

	token, err := s.signer.Sign(account.Handle, clientIP, now, expiresAt)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "sign session token").
			Wrap(err)
	}

	session, err := NewSessionToken(account.ID, account.Handle, token, clientIP, expiresAt)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session token").
			Wrap(err)
	}

	if err := s.sessions.Replace(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_REPLACE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, nil
}

// VerifySession answers whether the supplied token proves a live login for
// the handle at the observed address. Mismatches are soft results with a
// reason, never errors; the error return covers storage faults only.
func (s *Service) VerifySession(ctx context.Context, handle, token, clientIP string) (VerifyResult, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotVerified(ReasonTokenNotFound), nil
		}
		return VerifyResult{}, oops.Code("SESSION_VERIFY_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}

	if session.IsExpiredAt(s.now()) {
		return NotVerified(ReasonTokenExpired), nil
	}
	if session.Handle != handle {
		return NotVerified(ReasonHandleMismatch), nil
	}
	if NormalizeIP(session.ClientIP) != NormalizeIP(clientIP) {
		return NotVerified(ReasonIPMismatch), nil
	}

	return Verified(handle), nil
}

// VerifyPlayer answers the same question for a caller that does not hold
// the raw token: the game server only knows the connecting player's handle
// and current address. The account's single live session is located and
// the same address check applied.
func (s *Service) VerifyPlayer(ctx context.Context, handle, clientIP string) (VerifyResult, error) {
	account, err := s.accounts.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotVerified(ReasonAccountNotFound), nil
		}
		return VerifyResult{}, oops.Code("PLAYER_VERIFY_FAILED").
			With("operation", "get account by handle").
			Wrap(err)
	}

	session, err := s.sessions.GetLiveByAccount(ctx, account.ID, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotVerified(ReasonNotLoggedIn), nil
		}
		return VerifyResult{}, oops.Code("PLAYER_VERIFY_FAILED").
			With("operation", "get live session").
			Wrap(err)
	}

	if NormalizeIP(session.ClientIP) != NormalizeIP(clientIP) {
		return NotVerified(ReasonIPChanged), nil
	}

	return Verified(handle), nil
}
