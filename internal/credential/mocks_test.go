// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package credential_test

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/palisade/palisade/internal/audit"
	"github.com/palisade/palisade/internal/credential"
)

// mockAccountRepository is a mock for credential.AccountRepository.
type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) Create(ctx context.Context, account *credential.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*credential.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByUsername(ctx context.Context, username string) (*credential.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Account), args.Error(1)
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*credential.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credential.Account), args.Error(1)
}

func (m *mockAccountRepository) List(ctx context.Context) ([]*credential.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*credential.Account), args.Error(1)
}

func (m *mockAccountRepository) Update(ctx context.Context, account *credential.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *mockAccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *mockAccountRepository) UpdateLockState(ctx context.Context, id ulid.ULID, state credential.LockState) error {
	args := m.Called(ctx, id, state)
	return args.Error(0)
}

func (m *mockAccountRepository) SetTwoFactor(ctx context.Context, id ulid.ULID, secret *string, enabled bool) error {
	args := m.Called(ctx, id, secret, enabled)
	return args.Error(0)
}

func (m *mockAccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash *string, expiresAt *time.Time) error {
	args := m.Called(ctx, id, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *mockAccountRepository) ConsumeResetToken(ctx context.Context, id ulid.ULID, tokenHash, newPasswordHash string, now time.Time) error {
	args := m.Called(ctx, id, tokenHash, newPasswordHash, now)
	return args.Error(0)
}

func (m *mockAccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// captureSink records audit entries for assertions.
type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *captureSink) Record(_ context.Context, entry audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

// actions returns the recorded action sequence.
func (s *captureSink) actions() []audit.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Action, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

// last returns the most recent entry, or a zero Entry if none.
func (s *captureSink) last() audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return audit.Entry{}
	}
	return s.entries[len(s.entries)-1]
}

// mockAuditStore is a mock for audit.Store.
type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) Append(ctx context.Context, entry audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAuditStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]audit.Entry), args.Error(1)
}
