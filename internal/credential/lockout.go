// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"time"
)

// LockoutConfig configures the per-account exponential lockout.
type LockoutConfig struct {
	// Threshold is the failure count at which lockouts begin.
	Threshold int

	// BaseLockDuration is the lock applied at exactly Threshold failures.
	// Each further failure doubles it, up to MaxShift doublings.
	BaseLockDuration time.Duration

	// MaxShift caps the exponent so the multiplier cannot overflow.
	MaxShift uint
}

// DefaultLockoutConfig returns the reference lockout parameters:
// 5 failures, 15 minute base, multiplier capped at 2^16.
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		Threshold:        5,
		BaseLockDuration: 15 * time.Minute,
		MaxShift:         16,
	}
}

// LockoutPolicy tracks cumulative failed attempts per account and computes
// lockout windows with exponential growth once the threshold is exceeded.
// Bounded retries without permanent lockout: cost escalates for sustained
// guessing, and the lock always expires.
type LockoutPolicy struct {
	cfg LockoutConfig
	now func() time.Time
}

// NewLockoutPolicy creates a LockoutPolicy. A nil clock uses time.Now.
func NewLockoutPolicy(cfg LockoutConfig, clock func() time.Time) *LockoutPolicy {
	if clock == nil {
		clock = time.Now
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultLockoutConfig().Threshold
	}
	if cfg.BaseLockDuration <= 0 {
		cfg.BaseLockDuration = DefaultLockoutConfig().BaseLockDuration
	}
	if cfg.MaxShift == 0 {
		cfg.MaxShift = DefaultLockoutConfig().MaxShift
	}
	return &LockoutPolicy{cfg: cfg, now: clock}
}

// IsLocked reports whether the account is currently locked and, if so,
// how long remains. It is a pure read and never mutates the account;
// clearing an observed-stale lock is the orchestrator's job.
func (p *LockoutPolicy) IsLocked(a *Account) (bool, time.Duration) {
	if a.LockedUntil == nil {
		return false, 0
	}
	remaining := a.LockedUntil.Sub(p.now())
	if remaining <= 0 {
		return false, 0
	}
	return true, remaining
}

// RecordFailure increments the failure counter, stamps the failure time,
// and sets the lockout window once the threshold is reached. The caller
// persists the resulting LockState atomically.
func (p *LockoutPolicy) RecordFailure(a *Account) {
	now := p.now()
	a.FailedAttempts++
	a.LastFailedAt = &now
	a.UpdatedAt = now

	if a.FailedAttempts < p.cfg.Threshold {
		return
	}

	shift := uint(a.FailedAttempts - p.cfg.Threshold)
	if shift > p.cfg.MaxShift {
		shift = p.cfg.MaxShift
	}
	until := now.Add(p.cfg.BaseLockDuration * time.Duration(1<<shift))
	a.LockedUntil = &until
}

// RecordSuccess resets the failure counter and clears the lock fields.
func (p *LockoutPolicy) RecordSuccess(a *Account) {
	a.FailedAttempts = 0
	a.LastFailedAt = nil
	a.LockedUntil = nil
	a.UpdatedAt = p.now()
}

// LockState returns the account's current lock fields for persistence.
func (a *Account) LockState() LockState {
	return LockState{
		FailedAttempts: a.FailedAttempts,
		LastFailedAt:   a.LastFailedAt,
		LockedUntil:    a.LockedUntil,
	}
}
