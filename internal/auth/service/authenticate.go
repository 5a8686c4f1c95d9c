package service

import (
	"context"
	"errors"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/secrets"
)

// Authenticate verifies an identifier/secret pair and, on success, issues a
// session credential pair. Unknown identifier and wrong secret produce the
// same invalid_credentials failure, and the unknown-identifier path still
// pays a secret comparison so response time does not reveal which branch was
// taken.
func (s *Service) Authenticate(ctx context.Context, identifier, secret string, meta models.ClientMeta) (*models.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	if identifier == "" || secret == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "identifier and secret are required")
	}

	identity, err := s.identities.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			_ = secrets.VerifySecret(secret, s.dummyDigest)
			s.recordAuthFailure(ctx, identifier, "unknown identifier", meta)
			return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeTransientStore, "identity lookup failed")
	}

	if err := secrets.VerifySecret(secret, identity.SecretDigest); err != nil {
		s.recordAuthFailure(ctx, identifier, "secret mismatch", meta)
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid credentials")
	}

	// Credential checks pass before state checks so a disabled-account
	// response is only reachable by someone holding the secret.
	if !identity.Active {
		s.recordAuthFailure(ctx, identifier, "account inactive", meta)
		return nil, dErrors.New(dErrors.CodeAccountInactive, "account is inactive")
	}
	if !identity.EmailVerified {
		s.recordAuthFailure(ctx, identifier, "identity unverified", meta)
		return nil, dErrors.New(dErrors.CodeUnverifiedIdentity, "identity is not verified")
	}

	now := time.Now()
	pair, err := s.issuePair(ctx, identity, meta, now)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementLogins()
	}
	draft := audit.UserAction(identity.SubjectID.String(), "login", "session", meta.DisplayName())
	draft.Category = audit.CategoryAuthentication
	s.record(ctx, draft)

	return pair, nil
}
