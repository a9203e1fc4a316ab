// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

// Package postgres provides PostgreSQL implementations of the credential
// repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/palisade/palisade/internal/credential"
)

// DB is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it for unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, username, password_hash, role, email,
	       failed_attempts, last_failed_at, locked_until,
	       totp_secret, totp_enabled, reset_token_hash, reset_expires_at,
	       needs_rehash, last_login_at, created_at, updated_at`

// AccountRepository implements credential.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *credential.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, username, password_hash, role, email,
			failed_attempts, last_failed_at, locked_until,
			totp_secret, totp_enabled, reset_token_hash, reset_expires_at,
			needs_rehash, last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		account.ID.String(),
		account.Username,
		account.PasswordHash,
		string(account.Role),
		account.Email,
		account.FailedAttempts,
		account.LastFailedAt,
		account.LockedUntil,
		account.TOTPSecret,
		account.TOTPEnabled,
		account.ResetTokenHash,
		account.ResetExpiresAt,
		account.NeedsRehash,
		account.LastLoginAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code(credential.CodeDuplicateAccount).
				With("username", account.Username).
				Wrap(err)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*credential.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*credential.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(username) = LOWER($1)
	`, username)

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(credential.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*credential.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(credential.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// List returns all accounts ordered by username.
func (r *AccountRepository) List(ctx context.Context) ([]*credential.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY LOWER(username)
	`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*credential.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").
				With("operation", "scan account").
				Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, nil
}

// Update updates an existing account.
func (r *AccountRepository) Update(ctx context.Context, account *credential.Account) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			username = $2,
			password_hash = $3,
			role = $4,
			email = $5,
			failed_attempts = $6,
			last_failed_at = $7,
			locked_until = $8,
			totp_secret = $9,
			totp_enabled = $10,
			reset_token_hash = $11,
			reset_expires_at = $12,
			needs_rehash = $13,
			last_login_at = $14,
			updated_at = $15
		WHERE id = $1
	`,
		account.ID.String(),
		account.Username,
		account.PasswordHash,
		string(account.Role),
		account.Email,
		account.FailedAttempts,
		account.LastFailedAt,
		account.LockedUntil,
		account.TOTPSecret,
		account.TOTPEnabled,
		account.ResetTokenHash,
		account.ResetExpiresAt,
		account.NeedsRehash,
		account.LastLoginAt,
		account.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", account.ID.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates the password hash and clears the rehash flag.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, needs_rehash = FALSE, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// UpdateLockState persists the failure counter and lock fields in one
// statement. Concurrent failed logins for the same account serialize on
// the row lock, so no update is lost.
func (r *AccountRepository) UpdateLockState(ctx context.Context, id ulid.ULID, state credential.LockState) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			failed_attempts = $2,
			last_failed_at = $3,
			locked_until = $4,
			updated_at = $5
		WHERE id = $1
	`, id.String(), state.FailedAttempts, state.LastFailedAt, state.LockedUntil, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_LOCK_FAILED").
			With("operation", "update lock state").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// SetTwoFactor persists the TOTP secret and enabled flag together.
func (r *AccountRepository) SetTwoFactor(ctx context.Context, id ulid.ULID, secret *string, enabled bool) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET totp_secret = $2, totp_enabled = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), secret, enabled, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_TOTP_FAILED").
			With("operation", "set two-factor").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// SetResetToken persists the reset token hash and expiry together.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash *string, expiresAt *time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET reset_token_hash = $2, reset_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_SET_RESET_FAILED").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// ConsumeResetToken spends a reset token in a single statement. The row
// matches only while the same unexpired token is still present, so
// concurrent consumers cannot both succeed.
func (r *AccountRepository) ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, newPasswordHash string, now time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts SET
			password_hash = $3,
			reset_token_hash = NULL,
			reset_expires_at = NULL,
			needs_rehash = FALSE,
			failed_attempts = 0,
			last_failed_at = NULL,
			locked_until = NULL,
			updated_at = $4
		WHERE id = $1
		  AND reset_token_hash = $2
		  AND reset_expires_at > $4
	`, id.String(), tokenHash, newPasswordHash, now)
	if err != nil {
		return oops.Code("ACCOUNT_CONSUME_RESET_FAILED").
			With("operation", "consume reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(credential.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*credential.Account, error) {
	var (
		idStr          string
		username       string
		passwordHash   string
		role           string
		email          *string
		failedAttempts int
		lastFailedAt   *time.Time
		lockedUntil    *time.Time
		totpSecret     *string
		totpEnabled    bool
		resetTokenHash *string
		resetExpiresAt *time.Time
		needsRehash    bool
		lastLoginAt    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&passwordHash,
		&role,
		&email,
		&failedAttempts,
		&lastFailedAt,
		&lockedUntil,
		&totpSecret,
		&totpEnabled,
		&resetTokenHash,
		&resetExpiresAt,
		&needsRehash,
		&lastLoginAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &credential.Account{
		ID:             id,
		Username:       username,
		PasswordHash:   passwordHash,
		Role:           credential.Role(role),
		Email:          email,
		FailedAttempts: failedAttempts,
		LastFailedAt:   lastFailedAt,
		LockedUntil:    lockedUntil,
		TOTPSecret:     totpSecret,
		TOTPEnabled:    totpEnabled,
		ResetTokenHash: resetTokenHash,
		ResetExpiresAt: resetExpiresAt,
		NeedsRehash:    needsRehash,
		LastLoginAt:    lastLoginAt,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ credential.AccountRepository = (*AccountRepository)(nil)
