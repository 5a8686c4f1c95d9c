package service

import (
	"context"
	"errors"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
	dErrors "trustcore/pkg/domain-errors"
)

// ProcessFederatedCallback completes an external sign-on: it redeems the
// authorization code, resolves the provider's claims, matches or provisions a
// local identity by email, and issues a credential pair. Both outcomes leave
// a security-category trail entry; a failed exchange is as interesting as a
// successful one.
func (s *Service) ProcessFederatedCallback(ctx context.Context, code, redirectURI string, meta models.ClientMeta) (*models.TokenPair, error) {
	ctx, span := s.tracer.Start(ctx, "auth.ProcessFederatedCallback")
	defer span.End()

	if s.provider == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "no federation provider configured")
	}

	tokens, err := s.provider.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		s.record(ctx, audit.SecurityEvent("", "federated_login_failed", "code exchange rejected"))
		return nil, err
	}

	profile, err := s.provider.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		s.record(ctx, audit.SecurityEvent("", "federated_login_failed", "userinfo fetch rejected"))
		return nil, err
	}

	identity, err := s.identities.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		identity, err = s.identities.CreateFromFederatedProfile(ctx, profile)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTransientStore, "could not provision federated identity")
		}
		s.record(ctx, audit.SecurityEvent(identity.SubjectID.String(), "identity_provisioned", "created from federated profile"))
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeTransientStore, "identity lookup failed")
	}

	if !identity.Active {
		s.record(ctx, audit.SecurityEvent(identity.SubjectID.String(), "federated_login_failed", "account inactive"))
		return nil, dErrors.New(dErrors.CodeAccountInactive, "account is inactive")
	}

	pair, err := s.issuePair(ctx, identity, meta, time.Now())
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementFederatedLogins()
	}
	s.record(ctx, audit.SecurityEvent(identity.SubjectID.String(), "federated_login", "signed in via external provider"))

	return pair, nil
}
