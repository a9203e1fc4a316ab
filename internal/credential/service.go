// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/oops"

	"github.com/palisade/palisade/internal/audit"
	"github.com/palisade/palisade/pkg/errutil"
)

// dummyPasswordHash is verified against when a target account doesn't
// exist, so the unknown-account path costs the same as a real mismatch.
// This is NOT a real credential - it's a fake hash that will never match
// any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

var (
	loginOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_logins_total",
		Help: "Total number of authentication attempts by outcome",
	}, []string{"outcome"})

	adminOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_admin_operations_total",
		Help: "Total number of administrative account operations by operation and status",
	}, []string{"operation", "status"})

	resetTokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_reset_tokens_issued_total",
		Help: "Total number of password reset tokens issued",
	})
)

// Deps are the collaborators an authentication Service orchestrates.
// Logger and Clock are optional; everything else is required.
type Deps struct {
	Accounts   AccountRepository
	Codec      Codec
	Limiter    *RateLimiter
	Lockout    *LockoutPolicy
	TwoFactor  *TwoFactorManager
	Resets     *ResetFlow
	Sink       audit.Sink
	AuditStore audit.Store
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Service answers "is this (identifier, secret[, second factor])
// combination currently valid" and performs the side effects of the
// answer: counters, migration, audit. Every inbound authentication or
// administrative request passes through here.
type Service struct {
	accounts   AccountRepository
	codec      Codec
	limiter    *RateLimiter
	lockout    *LockoutPolicy
	twofactor  *TwoFactorManager
	resets     *ResetFlow
	sink       audit.Sink
	auditStore audit.Store
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service, validating that every required
// collaborator is present.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case deps.Codec == nil:
		return nil, oops.Errorf("password codec is required")
	case deps.Limiter == nil:
		return nil, oops.Errorf("rate limiter is required")
	case deps.Lockout == nil:
		return nil, oops.Errorf("lockout policy is required")
	case deps.TwoFactor == nil:
		return nil, oops.Errorf("two-factor manager is required")
	case deps.Resets == nil:
		return nil, oops.Errorf("reset flow is required")
	case deps.Sink == nil:
		return nil, oops.Errorf("audit sink is required")
	case deps.AuditStore == nil:
		return nil, oops.Errorf("audit store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		accounts:   deps.Accounts,
		codec:      deps.Codec,
		limiter:    deps.Limiter,
		lockout:    deps.Lockout,
		twofactor:  deps.TwoFactor,
		resets:     deps.Resets,
		sink:       deps.Sink,
		auditStore: deps.AuditStore,
		logger:     deps.Logger,
		now:        deps.Clock,
	}, nil
}

// Authenticate runs the ordered pipeline: origin rate limit, account
// lockout, password, second factor, opportunistic rehash, bookkeeping.
// It short-circuits on the first failing stage and audits every branch.
// otpCode is empty when the client supplied no second factor.
//
// The returned error always carries one of the stable codes from
// errors.go for expected security outcomes; anything else is an
// infrastructure failure and means "deny".
func (s *Service) Authenticate(ctx context.Context, username, password, originKey, otpCode string) (*Profile, error) {
	if username == "" || password == "" || originKey == "" {
		return nil, oops.Code(CodeInvalidRequest).Errorf("username, password, and origin are required")
	}

	now := s.now()

	// Stage 1: origin throttle. Identity-blind, so it runs before the
	// account is even looked up.
	if !s.limiter.Allow(originKey) {
		s.sink.Record(ctx, audit.NewEntry(now, originKey, username, audit.ActionLoginBlocked, "rate_limit"))
		loginOutcomes.WithLabelValues("rate_limited").Inc()
		return nil, oops.Code(CodeRateLimited).Errorf("too many attempts, try again later")
	}

	// Stage 2: load the record. Unknown accounts still pay for a full
	// verification against the dummy hash so the failure path costs the
	// same either way, and the returned error is identical.
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.codec.Verify(dummyPasswordHash, password)
			s.sink.Record(ctx, audit.NewEntry(now, originKey, username, audit.ActionLoginFailed, "bad_password"))
			loginOutcomes.WithLabelValues("invalid_credentials").Inc()
			return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get account by username").
			Wrap(err)
	}

	// Stage 3: lockout gate.
	if locked, remaining := s.lockout.IsLocked(account); locked {
		s.sink.Record(ctx, audit.NewEntry(now, originKey, account.Username, audit.ActionLoginBlocked, "locked"))
		loginOutcomes.WithLabelValues("locked").Inc()
		return nil, oops.Code(CodeAccountLocked).
			With("retry_after_seconds", int(remaining.Seconds())).
			Errorf("account locked, retry in %d minutes", int(remaining.Minutes())+1)
	}
	// An expired lock stays on the row until someone notices. Clear it
	// here; the failure counter is untouched, time never resets it.
	if account.LockedUntil != nil {
		account.LockedUntil = nil
		if err := s.accounts.UpdateLockState(ctx, account.ID, account.LockState()); err != nil {
			errutil.LogError(s.logger, "failed to clear expired lock", err)
		}
	}

	// Stage 4: password.
	if !s.codec.Verify(account.PasswordHash, password) {
		s.recordFailure(ctx, account, originKey, "bad_password")
		loginOutcomes.WithLabelValues("invalid_credentials").Inc()
		return nil, oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
	}

	// Stage 5: second factor. A missing code is a distinguishable signal
	// so the client knows to prompt - the password already checked out,
	// and it does not count as a failed attempt. An invalid code does.
	if account.TOTPEnabled {
		if otpCode == "" {
			loginOutcomes.WithLabelValues("otp_required").Inc()
			return nil, oops.Code(CodeOTPRequired).Errorf("second factor required")
		}
		if account.TOTPSecret == nil || !s.twofactor.Validate(*account.TOTPSecret, otpCode) {
			s.recordFailure(ctx, account, originKey, "bad_otp")
			loginOutcomes.WithLabelValues("otp_invalid").Inc()
			return nil, oops.Code(CodeOTPInvalid).Errorf("invalid code")
		}
	}

	// Stage 6: opportunistic rehash. Best effort - a failed persist is
	// logged and retried on a future login, never failing this one.
	if s.codec.IsLegacy(account.PasswordHash) || account.NeedsRehash {
		s.rehash(ctx, account, password, originKey)
	}

	// Stage 7: success bookkeeping. This write must land; a store that
	// cannot record the reset counters fails the login (fail closed).
	s.lockout.RecordSuccess(account)
	account.LastLoginAt = &now
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, oops.Code("AUTH_UPDATE_FAILED").
			With("operation", "record successful login").
			Wrap(err)
	}

	s.sink.Record(ctx, audit.NewEntry(now, originKey, account.Username, audit.ActionLoginSuccess, ""))
	loginOutcomes.WithLabelValues("success").Inc()

	return account.Profile(), nil
}

// recordFailure applies the lockout bookkeeping for a failed attempt and
// persists it through the atomic lock-state update.
func (s *Service) recordFailure(ctx context.Context, account *Account, originKey, detail string) {
	s.lockout.RecordFailure(account)
	if err := s.accounts.UpdateLockState(ctx, account.ID, account.LockState()); err != nil {
		errutil.LogError(s.logger, "failed to persist failure counter", err)
	}
	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, account.Username, audit.ActionLoginFailed, detail))
}

// rehash re-encodes a legacy credential canonically after a successful
// verification. The plaintext just proved itself; this is the only
// moment migration is possible without it.
func (s *Service) rehash(ctx context.Context, account *Account, password, originKey string) {
	newHash, err := s.codec.Encode(password)
	if err != nil {
		errutil.LogError(s.logger, "failed to re-encode legacy password", err)
		return
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, newHash); err != nil {
		errutil.LogError(s.logger, "failed to persist rehashed password", err)
		return
	}
	account.PasswordHash = newHash
	account.NeedsRehash = false
	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, account.Username, audit.ActionPasswordRehashed, ""))
}

// BeginEnrollment starts second-factor enrollment for an account.
func (s *Service) BeginEnrollment(ctx context.Context, username string) (*Enrollment, error) {
	enrollment, err := s.twofactor.BeginEnrollment(ctx, username)
	if err != nil {
		return nil, s.sanitize(err)
	}
	return enrollment, nil
}

// ConfirmEnrollment activates a second factor offered by BeginEnrollment.
func (s *Service) ConfirmEnrollment(ctx context.Context, username, secret, code, originKey string) error {
	if err := s.twofactor.ConfirmEnrollment(ctx, username, secret, code); err != nil {
		return s.sanitize(err)
	}
	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionTwoFactorEnabled, ""))
	return nil
}

// Disable2FA turns off the second factor after re-authentication.
func (s *Service) Disable2FA(ctx context.Context, username, currentPassword, code, originKey string) error {
	if err := s.twofactor.Disable(ctx, username, currentPassword, code); err != nil {
		return s.sanitize(err)
	}
	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionTwoFactorDisabled, ""))
	return nil
}

// RequestReset issues a password-reset token. See ResetFlow.RequestReset.
func (s *Service) RequestReset(ctx context.Context, usernameOrEmail, originKey string) (string, error) {
	return s.resets.RequestReset(ctx, usernameOrEmail, originKey)
}

// ConsumeReset spends a reset token. See ResetFlow.ConsumeReset.
func (s *Service) ConsumeReset(ctx context.Context, username, token, newPassword, originKey string) error {
	return s.resets.ConsumeReset(ctx, username, token, newPassword, originKey)
}

// GetAuditLog returns up to limit audit entries, most recent first.
func (s *Service) GetAuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	entries, err := s.auditStore.Recent(ctx, limit)
	if err != nil {
		return nil, oops.Code("AUDIT_READ_FAILED").Wrap(err)
	}
	return entries, nil
}

// sanitize collapses unknown-account errors on the 2FA surface into the
// generic credentials failure so these endpoints can't be used to probe
// which accounts exist.
func (s *Service) sanitize(err error) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
	}
	return err
}
