// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

// Package audit provides the append-only trail of security-relevant
// events: who did what, from where, and when. Entries are never mutated
// or deleted by this core.
package audit

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Action is the closed set of audited actions.
type Action string

// Audited actions.
const (
	ActionLoginSuccess      Action = "LOGIN_SUCCESS"
	ActionLoginFailed       Action = "LOGIN_FAILED"
	ActionLoginBlocked      Action = "LOGIN_BLOCKED"
	ActionAccountCreated    Action = "ACCOUNT_CREATED"
	ActionAccountUpdated    Action = "ACCOUNT_UPDATED"
	ActionAccountDeleted    Action = "ACCOUNT_DELETED"
	ActionPasswordChanged   Action = "PASSWORD_CHANGED"
	ActionPasswordRehashed  Action = "PASSWORD_REHASHED"
	ActionResetRequested    Action = "RESET_REQUESTED"
	ActionResetConsumed     Action = "RESET_CONSUMED"
	ActionTwoFactorEnabled  Action = "TWOFACTOR_ENABLED"
	ActionTwoFactorDisabled Action = "TWOFACTOR_DISABLED"
)

// Denial reports whether the action records a blocked or failed attempt.
// Denials are written synchronously (with WAL fallback) because they are
// the entries an investigation cannot afford to lose.
func (a Action) Denial() bool {
	switch a {
	case ActionLoginFailed, ActionLoginBlocked:
		return true
	}
	return false
}

// Entry is a single audit record.
type Entry struct {
	ID        ulid.ULID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Origin    string    `json:"origin"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// NewEntry creates an Entry stamped with a fresh ID and the given time.
func NewEntry(at time.Time, origin, actor string, action Action, detail string) Entry {
	return Entry{
		ID:        ulid.Make(),
		Timestamp: at,
		Origin:    origin,
		Actor:     actor,
		Action:    action,
		Detail:    detail,
	}
}

// Sink accepts audit entries. Implementations must be fire-and-forget
// with respect to the caller's success path: a failed audit write is
// logged and counted, never returned as the primary operation's outcome.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// Store is the persistence backend behind a Recorder.
type Store interface {
	// Append stores one entry.
	Append(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries, most recent first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
