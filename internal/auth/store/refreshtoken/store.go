// Package refreshtoken persists refresh token records, keyed by token
// digest. Implementations must make ConsumeByHash atomic with respect to
// concurrent redemption of the same token: at most one caller rotates a
// record, every other caller observes sentinel.ErrAlreadyRevoked.
package refreshtoken

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
)

// Store is the persistence contract consumed by the authentication service.
//
// Error contract: lookups return sentinel.ErrNotFound when no record exists
// for the hash; ConsumeByHash returns sentinel.ErrAlreadyRevoked or
// sentinel.ErrExpired on dead records; infrastructure failures are returned
// wrapped so services can classify them as transient.
type Store interface {
	// Add persists a new record. TokenHash must be unique.
	Add(ctx context.Context, record *models.RefreshTokenRecord) error

	// GetByHash returns the record for a token digest.
	GetByHash(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error)

	// ConsumeByHash atomically validates and revokes a record with reason
	// "rotated". This is the single-use rotation primitive: exactly one of
	// any set of concurrent callers succeeds.
	ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error)

	// RevokeByHash marks a record revoked. Revoking an already-revoked
	// record is a no-op success so retries stay safe.
	RevokeByHash(ctx context.Context, tokenHash, reason string, now time.Time) error

	// RevokeAllForSubject revokes every usable record for a subject and
	// returns how many records changed state.
	RevokeAllForSubject(ctx context.Context, subjectID uuid.UUID, reason string, now time.Time) (int, error)
}
