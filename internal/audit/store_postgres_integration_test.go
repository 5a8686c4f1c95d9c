//go:build integration

package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/sentinel"
	"trustcore/pkg/testutil/containers"
)

func postgresAuditStore(t *testing.T) *PostgresStore {
	t.Helper()
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.TruncateAll(context.Background()))
	return NewPostgresStore(pg.DB)
}

// appendChain inserts n linked entries with timestamps spaced a day apart,
// oldest first, and returns them.
func appendChain(t *testing.T, store *PostgresStore, n int, base time.Time) []*Entry {
	t.Helper()
	ctx := context.Background()

	prev := GenesisHash
	entries := make([]*Entry, 0, n)
	for i := 0; i < n; i++ {
		entry := &Entry{
			SequenceID: int64(i + 1),
			Timestamp:  base.Add(time.Duration(i) * 24 * time.Hour),
			Subject:    "subject-" + fmt.Sprint(i%2),
			Category:   CategoryAuthentication,
			Action:     "login",
			Severity:   SeverityInfo,
			Tier:       TierActive,
		}
		entry.PreviousEntryHash = prev
		entry.EntryHash = ComputeHash(entry, prev)
		prev = entry.EntryHash

		require.NoError(t, store.Append(ctx, entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestPostgresStore_AppendHeadGet(t *testing.T) {
	store := postgresAuditStore(t)
	ctx := context.Background()

	_, err := store.Head(ctx)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	entries := appendChain(t, store, 3, time.Now().Add(-72*time.Hour).Truncate(time.Microsecond))

	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), head.SequenceID)
	assert.Equal(t, entries[2].EntryHash, head.EntryHash)

	got, err := store.GetBySequence(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, entries[1].EntryHash, got.EntryHash)
	assert.Equal(t, entries[0].EntryHash, got.PreviousEntryHash)
	assert.True(t, Verify(got), "round-tripped entry must still hash to its stored value")

	_, err = store.GetBySequence(ctx, 99)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStore_QueryFilters(t *testing.T) {
	store := postgresAuditStore(t)
	ctx := context.Background()

	appendChain(t, store, 4, time.Now().Add(-96*time.Hour).Truncate(time.Microsecond))

	bySubject, err := store.Query(ctx, Filter{Subject: "subject-0"})
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.Equal(t, int64(1), bySubject[0].SequenceID)
	assert.Equal(t, int64(3), bySubject[1].SequenceID)

	paged, err := store.Query(ctx, Filter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 2)
	assert.Equal(t, int64(2), paged[0].SequenceID)
	assert.Equal(t, int64(3), paged[1].SequenceID)

	none, err := store.Query(ctx, Filter{Category: CategorySystem})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostgresStore_ArchiveLifecycle(t *testing.T) {
	store := postgresAuditStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	// Two old entries and one recent.
	appendChain(t, store, 3, now.Add(-10*24*time.Hour))

	aged, err := store.ListActiveOlderThan(ctx, now.Add(-7*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, aged, 2)

	for _, entry := range aged {
		require.NoError(t, store.MarkArchived(ctx, entry.SequenceID, now))
	}

	// Archiving is a one-way move; repeating is a no-op that still resolves
	// the entry.
	require.NoError(t, store.MarkArchived(ctx, aged[0].SequenceID, now))
	assert.ErrorIs(t, store.MarkArchived(ctx, 99, now), sentinel.ErrNotFound)

	archived, err := store.GetBySequence(ctx, aged[0].SequenceID)
	require.NoError(t, err)
	assert.Equal(t, TierArchived, archived.Tier)
	require.NotNil(t, archived.ArchivedAt)
	assert.WithinDuration(t, now, *archived.ArchivedAt, time.Millisecond)

	remaining, err := store.ListActiveOlderThan(ctx, now.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(3), remaining[0].SequenceID)
}

func TestPostgresStore_FlaggedEntriesSkipArchiveScan(t *testing.T) {
	store := postgresAuditStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	appendChain(t, store, 2, now.Add(-10*24*time.Hour))

	require.NoError(t, store.MarkFlagged(ctx, 1, "hash mismatch"))
	assert.ErrorIs(t, store.MarkFlagged(ctx, 99, "nope"), sentinel.ErrNotFound)

	flagged, err := store.GetBySequence(ctx, 1)
	require.NoError(t, err)
	assert.True(t, flagged.Flagged)
	assert.Equal(t, "hash mismatch", flagged.FlagReason)
	assert.Equal(t, TierActive, flagged.Tier, "flagging must not change the retention tier")

	candidates, err := store.ListActiveOlderThan(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(2), candidates[0].SequenceID)
}

func TestPostgresStore_PurgeArchivedOnly(t *testing.T) {
	store := postgresAuditStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	appendChain(t, store, 3, now.Add(-400*24*time.Hour))
	archivedAt := now.Add(-366 * 24 * time.Hour)
	require.NoError(t, store.MarkArchived(ctx, 1, archivedAt))
	require.NoError(t, store.MarkArchived(ctx, 2, archivedAt))

	stale, err := store.ListArchivedOlderThan(ctx, now.Add(-365*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)

	// Entry 3 is still active and must survive the purge untouched.
	purged, freed, err := store.PurgeArchived(ctx, []int64{1, 2, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	assert.Positive(t, freed)

	_, err = store.GetBySequence(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	survivor, err := store.GetBySequence(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, TierActive, survivor.Tier)
}
