package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/sentinel"
)

func freshRecord(now time.Time) *RefreshTokenRecord {
	return &RefreshTokenRecord{
		ID:        uuid.New(),
		TokenHash: "hash",
		SubjectID: uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestValidateForRotation_RevokedBeatsExpired(t *testing.T) {
	now := time.Now()
	record := freshRecord(now)
	record.ExpiresAt = now.Add(-time.Minute)
	record.MarkRevoked(ReasonRotated, now)

	// A record that is both revoked and expired reports revoked, so the
	// loser of a concurrent rotation sees what actually happened.
	err := record.ValidateForRotation(now)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyRevoked)
}

func TestValidateForRotation_Expired(t *testing.T) {
	now := time.Now()
	record := freshRecord(now)
	record.ExpiresAt = now.Add(-time.Minute)

	assert.ErrorIs(t, record.ValidateForRotation(now), sentinel.ErrExpired)
}

func TestMarkRevoked_Idempotent(t *testing.T) {
	now := time.Now()
	record := freshRecord(now)

	record.MarkRevoked(ReasonUserRevoked, now)
	firstAt := *record.RevokedAt

	record.MarkRevoked(ReasonLogoutAll, now.Add(time.Hour))
	assert.Equal(t, ReasonUserRevoked, record.RevokedReason, "second revocation must not rewrite the reason")
	assert.Equal(t, firstAt, *record.RevokedAt)
}

func TestUsable(t *testing.T) {
	now := time.Now()
	record := freshRecord(now)
	assert.True(t, record.Usable(now))

	record.MarkRevoked(ReasonRotated, now)
	assert.False(t, record.Usable(now))
}

func TestClientMetaDisplayName(t *testing.T) {
	meta := ClientMeta{Agent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"}
	name := meta.DisplayName()
	assert.Contains(t, name, "Chrome")
	assert.Contains(t, name, " on ")

	assert.Equal(t, "unknown client", ClientMeta{}.DisplayName())
	assert.Equal(t, "gibberish", ClientMeta{Agent: "gibberish"}.DisplayName())
}
