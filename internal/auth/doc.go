// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cube Recall Contributors

// Package auth implements the credential core of the Cube Recall server.
//
// # Domain Types
//
// Domain types (Account, SessionToken, LaunchToken, MachineBinding) should
// be created using their respective constructors:
//   - NewAccount - creates an Account with a validated handle and password hash
//   - NewSessionToken - creates a SessionToken bound to an account and address
//   - NewLaunchToken - creates a one-time LaunchToken with a short expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration, login, session verification
//   - LaunchService - one-time launch token issuance and redemption
//   - AdminService - account/machine administration and storage hygiene
//
// Verification outcomes are values (VerifyResult), never errors: an expired
// token or a mismatched address is an expected, frequent answer that the
// game server branches on, not a fault.
package auth
