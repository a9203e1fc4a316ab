// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Palisade Contributors

package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AppendRecent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		entry := NewEntry(now.Add(time.Duration(i)*time.Second), "10.0.0.1", fmt.Sprintf("user%d", i), ActionLoginSuccess, "")
		require.NoError(t, store.Append(ctx, entry))
	}

	t.Run("most recent first", func(t *testing.T) {
		entries, err := store.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "user2", entries[0].Actor)
		assert.Equal(t, "user1", entries[1].Actor)
	})

	t.Run("zero limit returns everything", func(t *testing.T) {
		entries, err := store.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("limit larger than store", func(t *testing.T) {
		entries, err := store.Recent(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	now := time.Now()

	for i := 0; i < 3; i++ {
		entry := NewEntry(now, "origin", fmt.Sprintf("user%d", i), ActionLoginFailed, "")
		require.NoError(t, store.Append(ctx, entry))
	}

	assert.Equal(t, 2, store.Len())
	entries, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "user2", entries[0].Actor)
	assert.Equal(t, "user1", entries[1].Actor, "user0 evicted as the oldest")
}

func TestAction_Denial(t *testing.T) {
	assert.True(t, ActionLoginFailed.Denial())
	assert.True(t, ActionLoginBlocked.Denial())
	assert.False(t, ActionLoginSuccess.Denial())
	assert.False(t, ActionPasswordChanged.Denial())
	assert.False(t, ActionResetConsumed.Denial())
}
