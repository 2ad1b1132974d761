// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import (
	"time"
)

// Login failure rate limiting configuration.
const (
	// LockoutDuration is the time an account is locked out after too many
	// consecutive login failures.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of failures that triggers a lockout.
	LockoutThreshold = 7
)

// RateLimitResult contains the result of a login rate limit check.
type RateLimitResult struct {
	// Delay is the time the launcher should wait before another attempt.
	Delay time.Duration

	// IsLockedOut indicates the account is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the rate limit state based on failure count.
// lockedUntil is the current lockout timestamp (nil if not locked) and now
// is the instant the check is evaluated at.
func CheckFailures(failures int, lockedUntil *time.Time, now time.Time) RateLimitResult {
	result := RateLimitResult{}

	// Check existing lockout first
	if IsLockedOut(lockedUntil, now) {
		result.IsLockedOut = true
		result.LockoutRemaining = lockedUntil.Sub(now)
		return result
	}

	// Progressive delay: 2^(failures-1) seconds, max 32s before lockout
	if failures > 0 && failures < LockoutThreshold {
		result.Delay = time.Duration(1<<(failures-1)) * time.Second
		if result.Delay > 32*time.Second {
			result.Delay = 32 * time.Second
		}
	}

	// Lockout at 7+ failures
	if failures >= LockoutThreshold {
		result.IsLockedOut = true
		result.LockoutRemaining = LockoutDuration
	}

	return result
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// ComputeLockoutTime returns the lockout timestamp for the given failure
// count, measured from now. Returns nil if failures < LockoutThreshold.
func ComputeLockoutTime(failures int, now time.Time) *time.Time {
	if failures < LockoutThreshold {
		return nil
	}
	lockout := now.Add(LockoutDuration)
	return &lockout
}
