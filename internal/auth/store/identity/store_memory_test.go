package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
)

func TestFindByIdentifier_CaseInsensitive(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	store.Seed(&models.Identity{
		SubjectID:  uuid.New(),
		Identifier: "Ada@Example.com",
		Active:     true,
	})

	found, err := store.FindByIdentifier(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada@Example.com", found.Identifier)

	_, err = store.FindByIdentifier(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestFindBySubjectID(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	subject := uuid.New()

	store.Seed(&models.Identity{SubjectID: subject, Identifier: "ada@example.com"})

	found, err := store.FindBySubjectID(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, subject, found.SubjectID)

	_, err = store.FindBySubjectID(ctx, uuid.New())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCreateFromFederatedProfile(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	created, err := store.CreateFromFederatedProfile(ctx, &models.FederatedProfile{
		ExternalID:    "ext-123",
		Email:         "new@example.com",
		EmailVerified: true,
	})
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.True(t, created.EmailVerified)
	assert.Equal(t, []string{"user"}, created.Roles)

	found, err := store.FindByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.SubjectID, found.SubjectID)

	_, err = store.CreateFromFederatedProfile(ctx, &models.FederatedProfile{Email: "new@example.com"})
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}
