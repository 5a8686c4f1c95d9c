//go:build integration

package refreshtoken

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
	"trustcore/pkg/testutil/containers"
)

func postgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.TruncateAll(context.Background()))
	return NewPostgres(pg.DB)
}

func TestPostgres_AddAndGetRoundTrip(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	record := &models.RefreshTokenRecord{
		ID:            uuid.New(),
		TokenHash:     "hash-1",
		SubjectID:     uuid.New(),
		IssuedAt:      now,
		ExpiresAt:     now.Add(time.Hour),
		ClientAddress: "10.0.0.1",
		ClientAgent:   "test-agent",
	}
	require.NoError(t, store.Add(ctx, record))

	found, err := store.GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, record.SubjectID, found.SubjectID)
	assert.WithinDuration(t, record.ExpiresAt, found.ExpiresAt, time.Millisecond)
	assert.False(t, found.Revoked)

	_, err = store.GetByHash(ctx, "missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgres_ConsumeByHash_ConcurrentSingleWinner(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Add(ctx, &models.RefreshTokenRecord{
		ID:        uuid.New(),
		TokenHash: "race-hash",
		SubjectID: uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}))

	const racers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners, revoked int

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeByHash(ctx, "race-hash", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, sentinel.ErrAlreadyRevoked):
				revoked++
			default:
				t.Errorf("unexpected consume error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "row lock must serialize concurrent redemption")
	assert.Equal(t, racers-1, revoked)

	record, err := store.GetByHash(ctx, "race-hash")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonRotated, record.RevokedReason)
}

func TestPostgres_RevokeByHash_Idempotent(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Add(ctx, &models.RefreshTokenRecord{
		ID:        uuid.New(),
		TokenHash: "revoke-hash",
		SubjectID: uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}))

	require.NoError(t, store.RevokeByHash(ctx, "revoke-hash", models.ReasonUserRevoked, now))
	require.NoError(t, store.RevokeByHash(ctx, "revoke-hash", models.ReasonLogoutAll, now))

	record, err := store.GetByHash(ctx, "revoke-hash")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonUserRevoked, record.RevokedReason)

	assert.ErrorIs(t, store.RevokeByHash(ctx, "missing", models.ReasonUserRevoked, now), sentinel.ErrNotFound)
}

func TestPostgres_RevokeAllForSubject(t *testing.T) {
	store := postgresStore(t)
	ctx := context.Background()
	now := time.Now()
	subject := uuid.New()

	for _, hash := range []string{"s1", "s2"} {
		require.NoError(t, store.Add(ctx, &models.RefreshTokenRecord{
			ID:        uuid.New(),
			TokenHash: hash,
			SubjectID: subject,
			IssuedAt:  now,
			ExpiresAt: now.Add(time.Hour),
		}))
	}
	require.NoError(t, store.Add(ctx, &models.RefreshTokenRecord{
		ID:        uuid.New(),
		TokenHash: "other",
		SubjectID: uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}))

	revoked, err := store.RevokeAllForSubject(ctx, subject, models.ReasonLogoutAll, now)
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	untouched, err := store.GetByHash(ctx, "other")
	require.NoError(t, err)
	assert.False(t, untouched.Revoked)
}
