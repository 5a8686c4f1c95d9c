package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
)

// InMemoryStore keeps identities in maps guarded by a mutex. Exists for tests
// and single-process deployments; production points at the directory
// database.
type InMemoryStore struct {
	mu           sync.RWMutex
	byIdentifier map[string]*models.Identity
	bySubject    map[uuid.UUID]*models.Identity
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byIdentifier: make(map[string]*models.Identity),
		bySubject:    make(map[uuid.UUID]*models.Identity),
	}
}

// Seed registers an identity. Identifier lookup is case-insensitive.
func (s *InMemoryStore) Seed(identity *models.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *identity
	s.byIdentifier[strings.ToLower(identity.Identifier)] = &clone
	s.bySubject[identity.SubjectID] = &clone
}

func (s *InMemoryStore) FindByIdentifier(_ context.Context, identifier string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.byIdentifier[strings.ToLower(identifier)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *identity
	return &clone, nil
}

func (s *InMemoryStore) FindBySubjectID(_ context.Context, subjectID uuid.UUID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.bySubject[subjectID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *identity
	return &clone, nil
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	// Identifier doubles as the email address in this store.
	return s.FindByIdentifier(ctx, email)
}

func (s *InMemoryStore) CreateFromFederatedProfile(_ context.Context, profile *models.FederatedProfile) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(profile.Email)
	if _, exists := s.byIdentifier[key]; exists {
		return nil, sentinel.ErrInvalidState
	}

	identity := &models.Identity{
		SubjectID:     uuid.New(),
		Identifier:    profile.Email,
		Active:        true,
		EmailVerified: profile.EmailVerified,
		Roles:         []string{"user"},
	}
	s.byIdentifier[key] = identity
	s.bySubject[identity.SubjectID] = identity
	clone := *identity
	return &clone, nil
}
