// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/palisade/palisade/internal/audit"
	"github.com/palisade/palisade/internal/credential"
	"github.com/palisade/palisade/pkg/errutil"
)

func TestService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	codec := credential.NewStandardCodec()

	t.Run("creates account with canonical hash", func(t *testing.T) {
		h := newHarness(t, codec)

		var created *credential.Account
		h.repo.On("Create", ctx, mock.AnythingOfType("*credential.Account")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*credential.Account)
			}).
			Return(nil)

		profile, err := h.svc.CreateAccount(ctx, "alice", "Sw0rdfish", credential.RoleUser, nil, "console")
		require.NoError(t, err)
		assert.Equal(t, "alice", profile.Username)

		require.NotNil(t, created)
		assert.True(t, codec.Verify(created.PasswordHash, "Sw0rdfish"))
		assert.False(t, codec.IsLegacy(created.PasswordHash))
		assert.Equal(t, audit.ActionAccountCreated, h.sink.last().Action)
		assert.Equal(t, "user", h.sink.last().Detail)
	})

	t.Run("weak password rejected before any store call", func(t *testing.T) {
		h := newHarness(t, codec)

		_, err := h.svc.CreateAccount(ctx, "alice", "weak", credential.RoleUser, nil, "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeWeakPassword)
		h.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid username rejected", func(t *testing.T) {
		h := newHarness(t, codec)

		_, err := h.svc.CreateAccount(ctx, "9lives", "Sw0rdfish", credential.RoleUser, nil, "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeInvalidRequest)
	})

	t.Run("duplicate surfaces the repository code", func(t *testing.T) {
		h := newHarness(t, codec)
		h.repo.On("Create", ctx, mock.AnythingOfType("*credential.Account")).
			Return(oops.Code(credential.CodeDuplicateAccount).Errorf("username already taken"))

		_, err := h.svc.CreateAccount(ctx, "alice", "Sw0rdfish", credential.RoleUser, nil, "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeDuplicateAccount)
	})
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	codec := credential.NewStandardCodec()

	hash, err := codec.Encode("OldPass99")
	require.NoError(t, err)

	t.Run("changes password and clears pending reset", func(t *testing.T) {
		h := newHarness(t, codec)
		account := newTestAccount(t)
		account.PasswordHash = hash

		h.repo.On("GetByUsername", ctx, "alice").Return(account, nil)
		h.repo.On("UpdatePassword", ctx, account.ID, mock.AnythingOfType("string")).Return(nil)
		h.repo.On("SetResetToken", ctx, account.ID, (*string)(nil), (*time.Time)(nil)).Return(nil)

		require.NoError(t, h.svc.ChangePassword(ctx, "alice", "OldPass99", "NewPass99", "console"))
		assert.Equal(t, audit.ActionPasswordChanged, h.sink.last().Action)
		h.repo.AssertExpectations(t)
	})

	t.Run("wrong current password refused", func(t *testing.T) {
		h := newHarness(t, codec)
		account := newTestAccount(t)
		account.PasswordHash = hash
		h.repo.On("GetByUsername", ctx, "alice").Return(account, nil)

		err := h.svc.ChangePassword(ctx, "alice", "wrong", "NewPass99", "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeInvalidCredentials)
		h.repo.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown account indistinguishable from wrong password", func(t *testing.T) {
		h := newHarness(t, codec)
		h.repo.On("GetByUsername", ctx, "ghost").Return(nil, credential.ErrNotFound)

		err := h.svc.ChangePassword(ctx, "ghost", "OldPass99", "NewPass99", "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeInvalidCredentials)
	})

	t.Run("weak new password refused", func(t *testing.T) {
		h := newHarness(t, codec)

		err := h.svc.ChangePassword(ctx, "alice", "OldPass99", "weak", "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeWeakPassword)
	})
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, credential.NewStandardCodec())
	account := newTestAccount(t)
	h.repo.On("GetByUsername", ctx, "alice").Return(account, nil)
	h.repo.On("Update", ctx, account).Return(nil)

	email := "alice@example.com"
	role := credential.RoleAdmin
	profile, err := h.svc.UpdateProfile(ctx, "alice", &email, &role, "console")
	require.NoError(t, err)
	require.NotNil(t, profile.Email)
	assert.Equal(t, email, *profile.Email)
	assert.Equal(t, credential.RoleAdmin, profile.Role)
	assert.Equal(t, audit.ActionAccountUpdated, h.sink.last().Action)

	t.Run("unknown role refused", func(t *testing.T) {
		bad := credential.Role("superuser")
		_, err := h.svc.UpdateProfile(ctx, "alice", nil, &bad, "console")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, credential.CodeInvalidRequest)
	})
}

func TestService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, credential.NewStandardCodec())
	account := newTestAccount(t)
	h.repo.On("GetByUsername", ctx, "alice").Return(account, nil)
	h.repo.On("Delete", ctx, account.ID).Return(nil)

	require.NoError(t, h.svc.DeleteAccount(ctx, "alice", "console"))
	assert.Equal(t, audit.ActionAccountDeleted, h.sink.last().Action)
	h.repo.AssertExpectations(t)
}

func TestService_ListAccounts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, credential.NewStandardCodec())
	a := newTestAccount(t)
	h.repo.On("List", ctx).Return([]*credential.Account{a}, nil)

	profiles, err := h.svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, a.Username, profiles[0].Username)
}

func TestService_UnlockAccount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, credential.NewStandardCodec())
	account := newTestAccount(t)
	account.FailedAttempts = 7
	locked := h.now.Add(time.Hour)
	account.LockedUntil = &locked

	h.repo.On("GetByUsername", ctx, "alice").Return(account, nil)
	h.repo.On("UpdateLockState", ctx, account.ID, credential.LockState{}).Return(nil)

	require.NoError(t, h.svc.UnlockAccount(ctx, "alice", "console"))
	assert.Zero(t, account.FailedAttempts)
	assert.Nil(t, account.LockedUntil)
	assert.Equal(t, "unlocked", h.sink.last().Detail)
	h.repo.AssertExpectations(t)
}
