// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/palisade/palisade/internal/audit"
)

// Administrative operations. Role-based authorization is enforced by the
// calling layer; here every mutation goes through the strength gate and
// codec as appropriate and leaves an audit entry.

// observeAdminOp counts an administrative mutation once its outcome is
// known. Deferred with a pointer to the named error return.
func observeAdminOp(operation string, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
	}
	adminOperations.WithLabelValues(operation, status).Inc()
}

// CreateAccount provisions a new account with a canonical password hash.
func (s *Service) CreateAccount(ctx context.Context, username, password string, role Role, email *string, originKey string) (_ *Profile, err error) {
	defer observeAdminOp("create", &err)

	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.codec.Encode(password)
	if err != nil {
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "encode password").
			Wrap(err)
	}

	account, err := NewAccount(username, hash, role, email)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionAccountCreated, string(role)))

	return account.Profile(), nil
}

// ChangePassword sets a new password after verifying the current one.
// Any pending reset token is invalidated along with the old password.
func (s *Service) ChangePassword(ctx context.Context, username, currentPassword, newPassword, originKey string) (err error) {
	defer observeAdminOp("change_password", &err)

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
		}
		return oops.Code("PASSWORD_CHANGE_FAILED").
			With("operation", "load account").
			Wrap(err)
	}

	if !s.codec.Verify(account.PasswordHash, currentPassword) {
		return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
	}

	hash, err := s.codec.Encode(newPassword)
	if err != nil {
		return oops.Code("PASSWORD_CHANGE_FAILED").
			With("operation", "encode password").
			Wrap(err)
	}

	if err := s.accounts.UpdatePassword(ctx, account.ID, hash); err != nil {
		return oops.Code("PASSWORD_CHANGE_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	if err := s.accounts.SetResetToken(ctx, account.ID, nil, nil); err != nil {
		return oops.Code("PASSWORD_CHANGE_FAILED").
			With("operation", "clear reset token").
			Wrap(err)
	}

	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionPasswordChanged, ""))

	return nil
}

// UpdateProfile changes the mutable profile fields. Nil arguments leave
// the corresponding field untouched.
func (s *Service) UpdateProfile(ctx context.Context, username string, email *string, role *Role, originKey string) (_ *Profile, err error) {
	defer observeAdminOp("update", &err)

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if email != nil {
		account.Email = email
	}
	if role != nil {
		if !role.Valid() {
			return nil, oops.Code(CodeInvalidRequest).
				With("role", string(*role)).
				Errorf("unknown role")
		}
		account.Role = *role
	}
	account.UpdatedAt = s.now()

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}

	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionAccountUpdated, ""))

	return account.Profile(), nil
}

// DeleteAccount removes an account. Audit entries for the account are
// retained; the trail is append-only.
func (s *Service) DeleteAccount(ctx context.Context, username, originKey string) (err error) {
	defer observeAdminOp("delete", &err)

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return err
	}

	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionAccountDeleted, ""))

	return nil
}

// ListAccounts returns the public profiles of all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]*Profile, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make([]*Profile, 0, len(accounts))
	for _, a := range accounts {
		profiles = append(profiles, a.Profile())
	}
	return profiles, nil
}

// UnlockAccount administratively clears the failure counter and any
// lockout window.
func (s *Service) UnlockAccount(ctx context.Context, username, originKey string) (err error) {
	defer observeAdminOp("unlock", &err)

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	s.lockout.RecordSuccess(account)
	if err := s.accounts.UpdateLockState(ctx, account.ID, account.LockState()); err != nil {
		return oops.Code("ACCOUNT_UNLOCK_FAILED").
			With("operation", "clear lock state").
			Wrap(err)
	}

	s.sink.Record(ctx, audit.NewEntry(s.now(), originKey, username, audit.ActionAccountUpdated, "unlocked"))

	return nil
}
