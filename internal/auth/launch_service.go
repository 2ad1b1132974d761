// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// LaunchServiceConfig carries the tunables for LaunchService.
type LaunchServiceConfig struct {
	TokenTTL time.Duration
	Now      func() time.Time
}

// LaunchService brokers one-time launch tokens: the launcher trades a live
// session token for one just before starting the game client, and the game
// server redeems it exactly once when the client connects.
type LaunchService struct {
	sessions SessionTokenRepository
	launches LaunchTokenRepository
	ttl      time.Duration
	now      func() time.Time
}

// NewLaunchService creates a new LaunchService.
func NewLaunchService(sessions SessionTokenRepository, launches LaunchTokenRepository, cfg LaunchServiceConfig) (*LaunchService, error) {
	if sessions == nil {
		return nil, oops.Code("LAUNCH_NIL_DEPENDENCY").Errorf("sessions repository is required")
	}
	if launches == nil {
		return nil, oops.Code("LAUNCH_NIL_DEPENDENCY").Errorf("launches repository is required")
	}

	s := &LaunchService{
		sessions: sessions,
		launches: launches,
		ttl:      cfg.TokenTTL,
		now:      cfg.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultLaunchTokenTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Create validates the supplied session token for the handle and mints a
// fresh one-time launch token, invalidating any prior unused one. If the
// caller's current address differs from the session's stored address the
// session is updated in place: the user may have changed networks between
// login and launch, and the launch flow trusts the session token alone.
func (s *LaunchService) Create(ctx context.Context, handle, sessionToken, remoteIP string) (*LaunchToken, error) {
	session, err := s.sessions.GetByToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("LAUNCH_UNAUTHORIZED").Wrap(ErrUnauthorized)
		}
		return nil, oops.Code("LAUNCH_CREATE_FAILED").
			With("operation", "get session by token").
			Wrap(err)
	}

	now := s.now()
	if session.Handle != handle || session.IsExpiredAt(now) {
		return nil, oops.Code("LAUNCH_UNAUTHORIZED").Wrap(ErrUnauthorized)
	}

	currentIP := NormalizeIP(remoteIP)
	if session.ClientIP != currentIP {
		if err := s.sessions.UpdateClientIP(ctx, session.ID, currentIP); err != nil {
			return nil, oops.Code("LAUNCH_CREATE_FAILED").
				With("operation", "update session address").
				Wrap(err)
		}
	}

	token, err := NewLaunchToken(handle, now, s.ttl)
	if err != nil {
		return nil, oops.Code("LAUNCH_CREATE_FAILED").
			With("operation", "mint launch token").
			Wrap(err)
	}

	if err := s.launches.Replace(ctx, token); err != nil {
		return nil, oops.Code("LAUNCH_CREATE_FAILED").
			With("operation", "persist launch token").
			Wrap(err)
	}

	return token, nil
}

// Redeem consumes a launch token. It succeeds exactly once per token; the
// invalid reason deliberately does not distinguish unknown, expired, and
// already-used tokens.
func (s *LaunchService) Redeem(ctx context.Context, handle, token string) (VerifyResult, error) {
	ok, err := s.launches.Redeem(ctx, handle, token, s.now())
	if err != nil {
		return VerifyResult{}, oops.Code("LAUNCH_REDEEM_FAILED").
			With("operation", "redeem launch token").
			Wrap(err)
	}
	if !ok {
		return NotVerified(ReasonLaunchInvalid), nil
	}
	return Verified(handle), nil
}
