package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
)

// PostgresStore resolves identities from the directory schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const identityColumns = `subject_id, identifier, secret_digest, active, email_verified, roles`

func (s *PostgresStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE LOWER(identifier) = LOWER($1)
	`
	return s.queryOne(ctx, query, identifier)
}

func (s *PostgresStore) FindBySubjectID(ctx context.Context, subjectID uuid.UUID) (*models.Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE subject_id = $1
	`
	return s.queryOne(ctx, query, subjectID)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	// The identifier column holds the email address.
	return s.FindByIdentifier(ctx, email)
}

func (s *PostgresStore) CreateFromFederatedProfile(ctx context.Context, profile *models.FederatedProfile) (*models.Identity, error) {
	if profile == nil || profile.Email == "" {
		return nil, sentinel.ErrInvalidInput
	}
	identity := &models.Identity{
		SubjectID:     uuid.New(),
		Identifier:    strings.ToLower(profile.Email),
		Active:        true,
		EmailVerified: profile.EmailVerified,
		Roles:         []string{"user"},
	}
	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		identity.SubjectID,
		identity.Identifier,
		identity.SecretDigest,
		identity.Active,
		identity.EmailVerified,
		pq.Array(identity.Roles),
	)
	if err != nil {
		return nil, fmt.Errorf("create federated identity: %w", err)
	}
	return identity, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg any) (*models.Identity, error) {
	var identity models.Identity
	var roles pq.StringArray
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&identity.SubjectID,
		&identity.Identifier,
		&identity.SecretDigest,
		&identity.Active,
		&identity.EmailVerified,
		&roles,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("identity not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	identity.Roles = []string(roles)
	return &identity, nil
}
