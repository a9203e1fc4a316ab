// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PostgresStore implements Store using PostgreSQL. The audit_log table
// has no UPDATE or DELETE path in this core.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append stores one entry.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, timestamp, origin, actor, action, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		entry.ID.String(),
		entry.Timestamp,
		entry.Origin,
		entry.Actor,
		string(entry.Action),
		entry.Detail,
	)
	if err != nil {
		return oops.Code("AUDIT_APPEND_FAILED").
			With("actor", entry.Actor).
			With("action", string(entry.Action)).
			Wrap(err)
	}
	return nil
}

// Recent returns up to limit entries, most recent first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, origin, actor, action, detail
		FROM audit_log
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, oops.Code("AUDIT_QUERY_FAILED").Wrap(err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			idStr     string
			timestamp time.Time
			origin    string
			actor     string
			action    string
			detail    string
		)
		if err := rows.Scan(&idStr, &timestamp, &origin, &actor, &action, &detail); err != nil {
			return nil, oops.Code("AUDIT_SCAN_FAILED").Wrap(err)
		}

		id, err := ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("AUDIT_INVALID_ID").With("id", idStr).Wrap(err)
		}

		entries = append(entries, Entry{
			ID:        id,
			Timestamp: timestamp,
			Origin:    origin,
			Actor:     actor,
			Action:    Action(action),
			Detail:    detail,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("AUDIT_QUERY_FAILED").Wrap(err)
	}

	return entries, nil
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)
