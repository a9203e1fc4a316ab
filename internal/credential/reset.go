// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/palisade/palisade/internal/audit"
)

// ResetConfig configures the password-reset token lifecycle.
type ResetConfig struct {
	// TokenBytes is the token entropy in bytes.
	TokenBytes int

	// TokenExpiry is how long an issued token stays valid.
	TokenExpiry time.Duration
}

// DefaultResetConfig returns the reference reset parameters:
// 32 bytes of entropy, 1 hour expiry.
func DefaultResetConfig() ResetConfig {
	return ResetConfig{
		TokenBytes:  32,
		TokenExpiry: time.Hour,
	}
}

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext token is
// handed to the delivery layer; only the hash is ever stored.
func GenerateResetToken(tokenBytes int) (token, hash string, err error) {
	if tokenBytes <= 0 {
		tokenBytes = DefaultResetConfig().TokenBytes
	}
	raw := make([]byte, tokenBytes)
	if _, err = rand.Read(raw); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(raw)
	hash = HashResetToken(token)

	return token, hash, nil
}

// VerifyResetToken checks if the plaintext token matches the stored hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// HashResetToken computes the SHA-256 hash of a token.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetFlow issues, validates, and consumes single-use password-reset
// tokens. A consumed reset is treated as proof of ownership equivalent to
// a successful login: it clears the lockout counters too.
type ResetFlow struct {
	accounts AccountRepository
	codec    Codec
	sink     audit.Sink
	cfg      ResetConfig
	now      func() time.Time
}

// NewResetFlow creates a ResetFlow. A nil clock uses time.Now.
func NewResetFlow(accounts AccountRepository, codec Codec, sink audit.Sink, cfg ResetConfig, clock func() time.Time) (*ResetFlow, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if codec == nil {
		return nil, oops.Errorf("password codec is required")
	}
	if sink == nil {
		return nil, oops.Errorf("audit sink is required")
	}
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = DefaultResetConfig().TokenBytes
	}
	if cfg.TokenExpiry <= 0 {
		cfg.TokenExpiry = DefaultResetConfig().TokenExpiry
	}
	if clock == nil {
		clock = time.Now
	}
	return &ResetFlow{
		accounts: accounts,
		codec:    codec,
		sink:     sink,
		cfg:      cfg,
		now:      clock,
	}, nil
}

// RequestReset issues a reset token for the account matching the given
// username or email. If no account matches, it returns success with an
// empty token: the return shape never reveals whether the account exists.
// Token delivery (email and so on) is the caller's job.
func (f *ResetFlow) RequestReset(ctx context.Context, usernameOrEmail string, origin string) (string, error) {
	if usernameOrEmail == "" {
		return "", oops.Code(CodeInvalidRequest).Errorf("identifier cannot be empty")
	}

	account, err := f.lookup(ctx, usernameOrEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "lookup account").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken(f.cfg.TokenBytes)
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate token").
			Wrap(err)
	}

	expires := f.now().Add(f.cfg.TokenExpiry)
	if err := f.accounts.SetResetToken(ctx, account.ID, &hash, &expires); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store token").
			Wrap(err)
	}

	f.sink.Record(ctx, audit.NewEntry(f.now(), origin, account.Username, audit.ActionResetRequested, ""))
	resetTokensIssued.Inc()

	return token, nil
}

// ConsumeReset spends a token to set a new password. The token is valid
// exactly once: the check-and-clear is a single atomic repository update,
// so concurrent consume attempts cannot both succeed. Outcomes are the
// coded errors RESET_TOKEN_INVALID, RESET_TOKEN_EXPIRED and
// CRED_WEAK_PASSWORD; none of them reveals whether the account exists.
func (f *ResetFlow) ConsumeReset(ctx context.Context, username, token, newPassword string, origin string) error {
	if username == "" || token == "" {
		return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	account, err := f.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
		}
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "load account").
			Wrap(err)
	}

	if account.ResetTokenHash == nil || !VerifyResetToken(token, *account.ResetTokenHash) {
		return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
	}

	now := f.now()
	if account.ResetExpiresAt == nil || !now.Before(*account.ResetExpiresAt) {
		return oops.Code(CodeResetTokenExpired).Errorf("reset token has expired")
	}

	newHash, err := f.codec.Encode(newPassword)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "encode password").
			Wrap(err)
	}

	// Atomic consume: matches only if the same unexpired token is still
	// on the row. A concurrent consumer losing this race sees ErrNotFound.
	err = f.accounts.ConsumeResetToken(ctx, account.ID, *account.ResetTokenHash, newHash, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeResetTokenInvalid).Errorf("invalid reset token")
		}
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume token").
			Wrap(err)
	}

	f.sink.Record(ctx, audit.NewEntry(now, origin, account.Username, audit.ActionResetConsumed, ""))

	return nil
}

// lookup finds an account by username first, then by email.
func (f *ResetFlow) lookup(ctx context.Context, usernameOrEmail string) (*Account, error) {
	account, err := f.accounts.GetByUsername(ctx, usernameOrEmail)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return f.accounts.GetByEmail(ctx, usernameOrEmail)
}
