// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"context"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/samber/oops"
)

// TOTP parameters. Codes are the standard 6-digit SHA1 variant with a
// 30 second step; validation tolerates one step of clock skew either way.
const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20
)

// Enrollment is the outcome of beginning a second-factor enrollment. The
// secret is not active until confirmed with a valid code.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
}

// TwoFactorManager governs the per-account second factor:
// disabled -> pending (secret issued, unconfirmed) -> enabled, and
// enabled -> disabled with re-authentication.
type TwoFactorManager struct {
	accounts AccountRepository
	codec    Codec
	issuer   string
	now      func() time.Time
}

// NewTwoFactorManager creates a TwoFactorManager. The issuer names this
// installation in provisioning URIs. A nil clock uses time.Now.
func NewTwoFactorManager(accounts AccountRepository, codec Codec, issuer string, clock func() time.Time) (*TwoFactorManager, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if codec == nil {
		return nil, oops.Errorf("password codec is required")
	}
	if issuer == "" {
		issuer = "Palisade"
	}
	if clock == nil {
		clock = time.Now
	}
	return &TwoFactorManager{
		accounts: accounts,
		codec:    codec,
		issuer:   issuer,
		now:      clock,
	}, nil
}

// BeginEnrollment generates a fresh secret for the account. Nothing is
// persisted; the secret only becomes active through ConfirmEnrollment.
func (m *TwoFactorManager) BeginEnrollment(ctx context.Context, username string) (*Enrollment, error) {
	account, err := m.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account.TOTPEnabled {
		return nil, oops.Code(CodeInvalidRequest).Errorf("second factor is already enabled")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: account.Username,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
	})
	if err != nil {
		return nil, oops.Code("TOTP_GENERATE_FAILED").Wrap(err)
	}

	return &Enrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
	}, nil
}

// ConfirmEnrollment validates the code against the offered secret and, on
// success, persists the secret as the account's active second factor. The
// secret and enabled flag are written together in one atomic update.
// An already-enabled account is rejected: replacing an active secret goes
// through Disable first, which demands the password and a current code.
func (m *TwoFactorManager) ConfirmEnrollment(ctx context.Context, username, secret, code string) error {
	account, err := m.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if account.TOTPEnabled {
		return oops.Code(CodeInvalidRequest).Errorf("second factor is already enabled")
	}
	if !m.Validate(secret, code) {
		return oops.Code(CodeOTPInvalid).Errorf("invalid code")
	}
	if err := m.accounts.SetTwoFactor(ctx, account.ID, &secret, true); err != nil {
		return err
	}
	return nil
}

// VerifyCode validates a code against the account's persisted secret.
func (m *TwoFactorManager) VerifyCode(ctx context.Context, username, code string) error {
	account, err := m.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if account.TOTPSecret == nil || !account.TOTPEnabled {
		return oops.Code(CodeOTPInvalid).Errorf("invalid code")
	}
	if !m.Validate(*account.TOTPSecret, code) {
		return oops.Code(CodeOTPInvalid).Errorf("invalid code")
	}
	return nil
}

// Disable turns the second factor off. It requires independent proof of
// the current password (codec only - no lockout or rate-limit effects)
// and a valid code from the active secret.
func (m *TwoFactorManager) Disable(ctx context.Context, username, currentPassword, code string) error {
	account, err := m.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !m.codec.Verify(account.PasswordHash, currentPassword) {
		return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
	}
	if account.TOTPSecret == nil || !account.TOTPEnabled {
		return oops.Code(CodeInvalidRequest).Errorf("second factor is not enabled")
	}
	if !m.Validate(*account.TOTPSecret, code) {
		return oops.Code(CodeOTPInvalid).Errorf("invalid code")
	}
	if err := m.accounts.SetTwoFactor(ctx, account.ID, nil, false); err != nil {
		return err
	}
	return nil
}

// Validate checks a code against a secret at the current time step with
// the configured skew tolerance. Any secret-parsing or validation failure
// is an invalid code; nothing else leaks out.
func (m *TwoFactorManager) Validate(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, m.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// GenerateCode produces the code for a secret at the given instant. Used
// by enrollment tests and the CLI's enrollment dry-run.
func GenerateCode(secret string, at time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", oops.Code("TOTP_GENERATE_FAILED").Wrap(err)
	}
	return code, nil
}
