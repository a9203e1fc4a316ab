// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palisade/palisade/internal/credential"
	"github.com/palisade/palisade/pkg/errutil"
)

var accountColumnNames = []string{
	"id", "username", "password_hash", "role", "email",
	"failed_attempts", "last_failed_at", "locked_until",
	"totp_secret", "totp_enabled", "reset_token_hash", "reset_expires_at",
	"needs_rehash", "last_login_at", "created_at", "updated_at",
}

func accountRow(id ulid.ULID, username string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(accountColumnNames).AddRow(
		id.String(), username, "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "user", nil,
		0, nil, nil,
		nil, false, nil, nil,
		false, nil, now, now,
	)
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	id := ulid.Make()

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   bool
		notFound  bool
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
					WithArgs("alice").
					WillReturnRows(accountRow(id, "alice"))
			},
		},
		{
			name: "not found maps to ErrNotFound",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
					WithArgs("alice").
					WillReturnRows(pgxmock.NewRows(accountColumnNames))
			},
			wantErr:  true,
			notFound: true,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM accounts\s+WHERE LOWER\(username\) = LOWER\(\$1\)`).
					WithArgs("alice").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewAccountRepository(mock)
			got, err := repo.GetByUsername(context.Background(), "alice")

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.notFound, errors.Is(err, credential.ErrNotFound))
			} else {
				require.NoError(t, err)
				assert.Equal(t, id, got.ID)
				assert.Equal(t, "alice", got.Username)
				assert.Equal(t, credential.RoleUser, got.Role)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_Create(t *testing.T) {
	account, err := credential.NewAccount("alice", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", credential.RoleUser, nil)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(
				account.ID.String(), account.Username, account.PasswordHash, "user", (*string)(nil),
				0, (*time.Time)(nil), (*time.Time)(nil),
				(*string)(nil), false, (*string)(nil), (*time.Time)(nil),
				false, (*time.Time)(nil), account.CreatedAt, account.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.Create(context.Background(), account))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("duplicate username maps to coded error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(
				account.ID.String(), account.Username, account.PasswordHash, "user", (*string)(nil),
				0, (*time.Time)(nil), (*time.Time)(nil),
				(*string)(nil), false, (*string)(nil), (*time.Time)(nil),
				false, (*time.Time)(nil), account.CreatedAt, account.UpdatedAt,
			).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		repo := NewAccountRepository(mock)
		err = repo.Create(context.Background(), account)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeDuplicateAccount)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_UpdateLockState(t *testing.T) {
	id := ulid.Make()
	lockedUntil := time.Now().Add(15 * time.Minute)
	failedAt := time.Now()
	state := credential.LockState{
		FailedAttempts: 5,
		LastFailedAt:   &failedAt,
		LockedUntil:    &lockedUntil,
	}

	t.Run("success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(id.String(), 5, &failedAt, &lockedUntil, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.UpdateLockState(context.Background(), id, state))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(id.String(), 5, &failedAt, &lockedUntil, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewAccountRepository(mock)
		err = repo.UpdateLockState(context.Background(), id, state)
		require.Error(t, err)
		assert.ErrorIs(t, err, credential.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_ConsumeResetToken(t *testing.T) {
	id := ulid.Make()
	now := time.Now()

	t.Run("matching token consumed", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(id.String(), "tokenhash", "newhash", now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.ConsumeResetToken(context.Background(), id, "tokenhash", "newhash", now))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("spent or expired token maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`UPDATE accounts SET`).
			WithArgs(id.String(), "tokenhash", "newhash", now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewAccountRepository(mock)
		err = repo.ConsumeResetToken(context.Background(), id, "tokenhash", "newhash", now)
		require.Error(t, err)
		assert.ErrorIs(t, err, credential.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_List(t *testing.T) {
	t.Run("orders by username", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		now := time.Now()
		rows := pgxmock.NewRows(accountColumnNames).
			AddRow(ulid.Make().String(), "alice", "h1", "admin", nil, 0, nil, nil, nil, false, nil, nil, false, nil, now, now).
			AddRow(ulid.Make().String(), "bob", "h2", "user", nil, 0, nil, nil, nil, false, nil, nil, false, nil, now, now)
		mock.ExpectQuery(`SELECT .+ FROM accounts\s+ORDER BY LOWER\(username\)`).
			WillReturnRows(rows)

		repo := NewAccountRepository(mock)
		accounts, err := repo.List(context.Background())
		require.NoError(t, err)
		require.Len(t, accounts, 2)
		assert.Equal(t, "alice", accounts[0].Username)
		assert.Equal(t, credential.RoleAdmin, accounts[0].Role)
		assert.Equal(t, "bob", accounts[1].Username)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("scan error surfaces", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		rows := pgxmock.NewRows([]string{"id"}).AddRow("only-one-column")
		mock.ExpectQuery(`SELECT .+ FROM accounts\s+ORDER BY LOWER\(username\)`).
			WillReturnRows(rows)

		repo := NewAccountRepository(mock)
		_, err = repo.List(context.Background())
		require.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_Delete(t *testing.T) {
	id := ulid.Make()

	t.Run("success", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewAccountRepository(mock)
		require.NoError(t, repo.Delete(context.Background(), id))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("missing account maps to ErrNotFound", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err, "failed to create mock")
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewAccountRepository(mock)
		err = repo.Delete(context.Background(), id)
		require.Error(t, err)
		assert.ErrorIs(t, err, credential.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})
}

func TestAccountRepository_SetTwoFactor(t *testing.T) {
	id := ulid.Make()
	secret := "JBSWY3DPEHPK3PXP"

	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	defer mock.Close()

	mock.ExpectExec(`UPDATE accounts SET totp_secret = \$2, totp_enabled = \$3`).
		WithArgs(id.String(), &secret, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewAccountRepository(mock)
	require.NoError(t, repo.SetTwoFactor(context.Background(), id, &secret, true))
	assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
}
