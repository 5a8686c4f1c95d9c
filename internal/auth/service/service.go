// Package service orchestrates the credential lifecycle: login, refresh
// rotation, federated sign-on, revocation. Every lifecycle transition emits
// one audit event. Validation of access tokens emits none: it is too
// high-frequency to log and touches no state.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trustcore/internal/audit"
	"trustcore/internal/auth/models"
	"trustcore/internal/auth/store/refreshtoken"
	"trustcore/internal/federation"
	"trustcore/internal/platform/metrics"
	"trustcore/internal/token"
	dErrors "trustcore/pkg/domain-errors"
	"trustcore/pkg/secrets"
)

// IdentityDirectory is the external identity lookup collaborator. The trust
// core needs only this slice of the user domain model.
//
// Error contract: Find methods return sentinel.ErrNotFound (wrapped is fine)
// when no identity matches.
type IdentityDirectory interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Identity, error)
	FindBySubjectID(ctx context.Context, subjectID uuid.UUID) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	CreateFromFederatedProfile(ctx context.Context, profile *models.FederatedProfile) (*models.Identity, error)
}

// TokenIssuer creates and validates token artifacts. Issuance and validation
// are pure computation and never suspend.
type TokenIssuer interface {
	IssueAccessToken(subjectID string, roles []string, now time.Time) (string, time.Time, error)
	IssueRefreshToken() (string, error)
	ValidateAccessToken(tokenString string) (*token.AccessTokenClaims, error)
	AccessTTL() time.Duration
}

// Auditor appends audit entries. Append failures are the caller's to log;
// they never roll back the decision being audited.
type Auditor interface {
	Append(ctx context.Context, draft audit.Draft) (int64, error)
}

const defaultRefreshTTL = 30 * 24 * time.Hour

// Service is the authentication coordinator. Operations run as independent
// concurrent request handlers; the only shared mutable state is the stores.
type Service struct {
	identities IdentityDirectory
	tokens     refreshtoken.Store
	issuer     TokenIssuer
	provider   federation.Provider
	auditor    Auditor
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	refreshTTL time.Duration

	// dummyDigest absorbs a bcrypt comparison when the identity lookup
	// misses, so "no such identifier" and "wrong secret" take comparable
	// time and return the same generic failure.
	dummyDigest string
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(auditor Auditor) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithFederationProvider(provider federation.Provider) Option {
	return func(s *Service) {
		s.provider = provider
	}
}

// WithRefreshTTL configures the refresh token lifetime.
// If not set or set to zero/negative, defaults to 30 days.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// NewService constructs the coordinator with required collaborators and
// options applied.
func NewService(identities IdentityDirectory, tokens refreshtoken.Store, issuer TokenIssuer, opts ...Option) (*Service, error) {
	if identities == nil || tokens == nil || issuer == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "identities, tokens, and issuer are required")
	}

	dummy, err := secrets.HashSecret("trustcore-timing-equalizer")
	if err != nil {
		return nil, err
	}

	svc := &Service{
		identities:  identities,
		tokens:      tokens,
		issuer:      issuer,
		refreshTTL:  defaultRefreshTTL,
		tracer:      otel.Tracer("trustcore/auth"),
		dummyDigest: dummy,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// issuePair mints an access/refresh pair and persists the refresh record.
// Shared by login, rotation, and federated sign-on.
func (s *Service) issuePair(ctx context.Context, identity *models.Identity, meta models.ClientMeta, now time.Time) (*models.TokenPair, error) {
	accessToken, expiresAt, err := s.issuer.IssueAccessToken(identity.SubjectID.String(), identity.Roles, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue access token")
	}

	rawRefresh, err := s.issuer.IssueRefreshToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue refresh token")
	}
	tokenHash, err := secrets.TokenDigest(rawRefresh)
	if err != nil {
		return nil, err
	}

	record := &models.RefreshTokenRecord{
		ID:            uuid.New(),
		TokenHash:     tokenHash,
		SubjectID:     identity.SubjectID,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.refreshTTL),
		ClientAddress: meta.Address,
		ClientAgent:   meta.Agent,
	}
	if err := s.tokens.Add(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransientStore, "could not persist refresh record")
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		AccessExpiresAt: expiresAt,
		RefreshToken:    rawRefresh,
	}, nil
}

// ValidateAccessToken checks signature and expiry only. It delegates to the
// issuer, touches no storage, and deliberately emits no audit event.
func (s *Service) ValidateAccessToken(tokenString string) (*token.AccessTokenClaims, error) {
	return s.issuer.ValidateAccessToken(tokenString)
}
