// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateHandle is returned when registering a handle that already exists.
var ErrDuplicateHandle = errors.New("handle already registered")

// ErrMachineLimit is returned when a machine has reached its account
// binding limit.
var ErrMachineLimit = errors.New("machine binding limit reached")

// ErrInvalidCredentials is returned on login failure. It deliberately does
// not distinguish an unknown handle from a wrong password.
var ErrInvalidCredentials = errors.New("invalid handle or password")

// ErrUnauthorized is returned when a launch token is requested with a
// session token that is missing, expired, or bound to a different handle.
var ErrUnauthorized = errors.New("unauthorized")

// ErrAccountLocked is returned when login is refused because the account
// is temporarily locked after repeated failures.
var ErrAccountLocked = errors.New("account temporarily locked")
