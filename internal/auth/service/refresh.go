package service

import (
	"context"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/secrets"
)

// Refresh redeems a refresh token for a new credential pair. Redemption is
// single-use: the presented token is atomically revoked with reason "rotated"
// before the replacement is issued, so of any set of concurrent redemptions
// exactly one wins and the rest observe token_revoked.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*models.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Refresh")
	defer span.End()

	tokenHash, err := secrets.TokenDigest(rawToken)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidToken, "refresh token is required")
	}

	now := time.Now()
	consumed, err := s.tokens.ConsumeByHash(ctx, tokenHash, now)
	if err != nil {
		translated := translate(err, rotationErrorMappings)
		if dErrors.HasCode(translated, dErrors.CodeTokenRevoked) {
			// A revoked token showing up again is either a replay or the
			// loser of a concurrent rotation. Both are worth a trail entry.
			s.record(ctx, audit.SecurityEvent(consumedSubject(consumed), "refresh_replayed", "revoked refresh token presented"))
		}
		return nil, translated
	}

	identity, err := s.identities.FindBySubjectID(ctx, consumed.SubjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransientStore, "identity lookup failed")
	}
	if !identity.Active {
		return nil, dErrors.New(dErrors.CodeAccountInactive, "account is inactive")
	}

	// Provenance carries forward from the consumed record so the whole
	// rotation lineage reads as one session.
	meta := models.ClientMeta{Address: consumed.ClientAddress, Agent: consumed.ClientAgent}
	pair, err := s.issuePair(ctx, identity, meta, now)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTokenRefreshes()
	}
	draft := audit.UserAction(consumed.SubjectID.String(), "token_refreshed", "session", meta.DisplayName())
	draft.Category = audit.CategoryAuthentication
	s.record(ctx, draft)

	return pair, nil
}

func consumedSubject(record *models.RefreshTokenRecord) string {
	if record == nil {
		return ""
	}
	return record.SubjectID.String()
}
