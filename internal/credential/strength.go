// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"unicode"

	"github.com/samber/oops"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword applies the strength gate used before every create,
// change, and reset: minimum length, at least one uppercase letter, at
// least one digit. It is pure and touches no persisted state.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeWeakPassword).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}

	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper {
		return oops.Code(CodeWeakPassword).Errorf("password must contain an uppercase letter")
	}
	if !hasDigit {
		return oops.Code(CodeWeakPassword).Errorf("password must contain a digit")
	}
	return nil
}
