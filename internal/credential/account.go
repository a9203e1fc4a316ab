// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Role is the closed set of account roles. Authorization decisions based
// on the role are made by the calling layer, not by this core.
type Role string

// Account roles.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid returns true if the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

// Account is the per-user credential record.
//
// Invariants maintained by the services in this package:
//   - TOTPSecret is non-nil iff TOTPEnabled is true.
//   - ResetTokenHash and ResetExpiresAt are set and cleared together.
//   - LockedUntil is cleared only by observed expiry or a successful
//     authentication; FailedAttempts resets to zero only on success or
//     administrative reset.
type Account struct {
	ID             ulid.ULID
	Username       string
	PasswordHash   string
	Role           Role
	Email          *string
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
	TOTPSecret     *string
	TOTPEnabled    bool
	ResetTokenHash *string
	ResetExpiresAt *time.Time
	NeedsRehash    bool
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates a validated Account with the given password hash.
// FailedAttempts starts at zero and the second factor is disabled.
func NewAccount(username, passwordHash string, role Role, email *string) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeInvalidRequest).Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code(CodeInvalidRequest).
			With("role", string(role)).
			Errorf("unknown role")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		Email:        email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Profile is the public view of an account returned by authentication.
// It never carries the password hash or any second-factor material.
type Profile struct {
	ID          ulid.ULID
	Username    string
	Role        Role
	Email       *string
	LastLoginAt *time.Time
}

// Profile returns the public view of the account.
func (a *Account) Profile() *Profile {
	return &Profile{
		ID:          a.ID,
		Username:    a.Username,
		Role:        a.Role,
		Email:       a.Email,
		LastLoginAt: a.LastLoginAt,
	}
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidRequest).Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code(CodeInvalidRequest).
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidRequest).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeInvalidRequest).
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// LockState is the slice of an account the lockout bookkeeping mutates.
// Repositories persist it with a single-statement update so concurrent
// failed logins for the same account cannot lose writes.
type LockState struct {
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
}

// AccountRepository manages account persistence.
//
// Implementations must provide at least read-committed isolation and
// perform UpdateLockState and ConsumeResetToken as atomic single-record
// updates.
type AccountRepository interface {
	// Create stores a new account. A username or email collision returns
	// an error carrying CodeDuplicateAccount.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// List returns all accounts ordered by username.
	List(ctx context.Context) ([]*Account, error)

	// Update updates an existing account.
	Update(ctx context.Context, account *Account) error

	// UpdatePassword updates the password hash and clears NeedsRehash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateLockState persists the failure counter and lock fields as a
	// single atomic update.
	UpdateLockState(ctx context.Context, id ulid.ULID, state LockState) error

	// SetTwoFactor persists the TOTP secret and enabled flag together.
	SetTwoFactor(ctx context.Context, id ulid.ULID, secret *string, enabled bool) error

	// SetResetToken persists the reset token hash and expiry together.
	// Both nil clears any pending token.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash *string, expiresAt *time.Time) error

	// ConsumeResetToken atomically sets the new password hash, clears the
	// reset fields, clears NeedsRehash, and resets the lock state - but
	// only if the stored token hash still matches and has not expired at
	// the given instant. Returns ErrNotFound if no row matched, which
	// callers treat as an already-consumed or invalid token.
	ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, newPasswordHash string, now time.Time) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}
