package refreshtoken

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
)

// InMemoryStore keeps refresh token records in a map guarded by a mutex. The
// lock makes ConsumeByHash trivially atomic; it intentionally favors clarity
// over performance and exists for tests and single-process deployments.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.RefreshTokenRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*models.RefreshTokenRecord)}
}

func (s *InMemoryStore) Add(_ context.Context, record *models.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.TokenHash]; exists {
		return sentinel.ErrInvalidState
	}
	clone := *record
	s.records[record.TokenHash] = &clone
	return nil
}

func (s *InMemoryStore) GetByHash(_ context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[tokenHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) ConsumeByHash(_ context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[tokenHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := record.ValidateForRotation(now); err != nil {
		return nil, err
	}
	record.MarkRevoked(models.ReasonRotated, now)
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) RevokeByHash(_ context.Context, tokenHash, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[tokenHash]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.MarkRevoked(reason, now)
	return nil
}

func (s *InMemoryStore) RevokeAllForSubject(_ context.Context, subjectID uuid.UUID, reason string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	revoked := 0
	for _, record := range s.records {
		if record.SubjectID != subjectID || record.Revoked {
			continue
		}
		record.MarkRevoked(reason, now)
		revoked++
	}
	return revoked, nil
}
