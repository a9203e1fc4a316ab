// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Stable error codes for expected security outcomes. These cross the
// component boundary unchanged; callers dispatch on the code, not the
// message. CodeInvalidCredentials is deliberately shared by "unknown
// account" and "wrong password" so the two cannot be told apart.
const (
	CodeRateLimited        = "CRED_RATE_LIMITED"
	CodeAccountLocked      = "CRED_ACCOUNT_LOCKED"
	CodeInvalidCredentials = "CRED_INVALID_CREDENTIALS"
	CodeOTPRequired        = "CRED_OTP_REQUIRED"
	CodeOTPInvalid         = "CRED_OTP_INVALID"
	CodeWeakPassword       = "CRED_WEAK_PASSWORD"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeResetTokenExpired  = "RESET_TOKEN_EXPIRED"
	CodeInvalidRequest     = "CRED_INVALID_REQUEST"
	CodeDuplicateAccount   = "CRED_DUPLICATE_ACCOUNT"
)
