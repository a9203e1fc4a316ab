// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package audit

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-memory store. Old entries are
// evicted oldest-first once the cap is reached.
const DefaultMemoryCapacity = 10000

// MemoryStore is an in-memory Store. Used by tests and by standalone
// installations that have not configured a database-backed trail.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

// NewMemoryStore creates a MemoryStore. capacity <= 0 uses the default.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{cap: capacity}
}

// Append stores one entry, evicting the oldest if at capacity.
func (s *MemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.cap {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns up to limit entries, most recent first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}

	out := make([]Entry, 0, limit)
	for i := len(s.entries) - 1; i >= len(s.entries)-limit; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)
