package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/secrets"
)

// Revoke marks a refresh token revoked with reason "user_revoked". Revocation
// is a terminal state change, not a deletion; the record stays for forensics.
// Returns whether a record existed for the token. Revoking an
// already-revoked token succeeds so retries stay safe.
func (s *Service) Revoke(ctx context.Context, rawToken string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Revoke")
	defer span.End()

	tokenHash, err := secrets.TokenDigest(rawToken)
	if err != nil {
		return false, dErrors.New(dErrors.CodeInvalidToken, "refresh token is required")
	}

	now := time.Now()
	if err := s.tokens.RevokeByHash(ctx, tokenHash, models.ReasonUserRevoked, now); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, translate(err, nil)
	}

	if s.metrics != nil {
		s.metrics.IncrementTokensRevoked()
	}
	s.record(ctx, audit.UserAction("", "token_revoked", "session", ""))
	return true, nil
}

// Logout revokes every usable refresh token for a subject with reason
// "logout_all". Access tokens already in the wild ride out their short TTL.
func (s *Service) Logout(ctx context.Context, subjectID uuid.UUID) (int, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Logout")
	defer span.End()

	revoked, err := s.tokens.RevokeAllForSubject(ctx, subjectID, models.ReasonLogoutAll, time.Now())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTransientStore, "could not revoke subject sessions")
	}

	if s.metrics != nil && revoked > 0 {
		s.metrics.TokensRevoked.Add(float64(revoked))
	}
	draft := audit.UserAction(subjectID.String(), "logout_all", "session", "")
	draft.Category = audit.CategoryAuthentication
	s.record(ctx, draft)
	return revoked, nil
}
