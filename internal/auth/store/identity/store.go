// Package identity resolves subjects for the authentication service. The
// trust core does not own user profiles; this package holds only the slice of
// identity state that credential decisions need, plus provisioning for
// first-time federated sign-ons.
package identity

import (
	"context"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
)

// Store is the identity lookup contract.
//
// Error contract: Find methods return sentinel.ErrNotFound (wrapped is fine)
// when no identity matches.
type Store interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Identity, error)
	FindBySubjectID(ctx context.Context, subjectID uuid.UUID) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)

	// CreateFromFederatedProfile provisions a local identity for a subject
	// first seen via an external provider. The provider's verification
	// status carries over.
	CreateFromFederatedProfile(ctx context.Context, profile *models.FederatedProfile) (*models.Identity, error)
}
