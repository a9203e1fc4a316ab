// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

// Package credential implements the credential and session-trust core of
// the Palisade panel: password verification and migration, brute-force
// defenses, TOTP second factors, and single-use password-reset tokens.
//
// # Domain Types
//
// Account is the per-user credential record. Accounts should be created
// through NewAccount, which validates the username and role; direct struct
// initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types.
//
// # Services
//
// Service is the orchestrator every inbound request goes through. It
// consults the RateLimiter and LockoutPolicy before touching the codec or
// second factor, and writes an audit entry on every branch. TwoFactorManager
// and ResetFlow own their respective sub-flows; Service delegates to them.
//
// Expected security outcomes (wrong password, locked account, rate limited,
// invalid token or code) are returned as oops-coded errors with stable
// codes, never as panics and never as infrastructure errors. Infrastructure
// failures keep their own codes and always deny.
package credential
