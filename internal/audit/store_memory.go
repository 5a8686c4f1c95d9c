package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"trustcore/internal/sentinel"
)

// InMemoryStore keeps entries in a map guarded by a mutex. It exists for
// tests and single-process deployments and favors clarity over performance.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*Entry
	head    int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[int64]*Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[entry.SequenceID]; exists {
		return sentinel.ErrInvalidState
	}
	clone := *entry
	s.entries[entry.SequenceID] = &clone
	if entry.SequenceID > s.head {
		s.head = entry.SequenceID
	}
	return nil
}

func (s *InMemoryStore) GetBySequence(_ context.Context, seq int64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[seq]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *InMemoryStore) Head(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[s.head]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *InMemoryStore) Query(_ context.Context, filter Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entry
	for _, entry := range s.entries {
		if !matches(entry, filter) {
			continue
		}
		clone := *entry
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SequenceID < matched[j].SequenceID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matches(e *Entry, f Filter) bool {
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Tier != "" && e.Tier != f.Tier {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

func (s *InMemoryStore) ListActiveOlderThan(_ context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entry
	for _, entry := range s.entries {
		if entry.Tier != TierActive && entry.Tier != "" {
			continue
		}
		if entry.Flagged || !entry.Timestamp.Before(cutoff) {
			continue
		}
		clone := *entry
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SequenceID < matched[j].SequenceID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) MarkArchived(_ context.Context, seq int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[seq]
	if !ok {
		return sentinel.ErrNotFound
	}
	if entry.Tier == TierArchived {
		return nil
	}
	entry.Tier = TierArchived
	archivedAt := at
	entry.ArchivedAt = &archivedAt
	return nil
}

func (s *InMemoryStore) MarkFlagged(_ context.Context, seq int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[seq]
	if !ok {
		return sentinel.ErrNotFound
	}
	entry.Flagged = true
	entry.FlagReason = reason
	return nil
}

func (s *InMemoryStore) ListArchivedOlderThan(_ context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entry
	for _, entry := range s.entries {
		if entry.Tier != TierArchived || entry.ArchivedAt == nil {
			continue
		}
		if !entry.ArchivedAt.Before(cutoff) {
			continue
		}
		clone := *entry
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SequenceID < matched[j].SequenceID
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) PurgeArchived(_ context.Context, seqs []int64) (int, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	var freed int64
	for _, seq := range seqs {
		entry, ok := s.entries[seq]
		if !ok || entry.Tier != TierArchived {
			continue
		}
		freed += approximateSize(entry)
		delete(s.entries, seq)
		purged++
	}

	// Purging the highest sequence must not make a non-empty store look
	// empty, or a restarted writer would reuse sequence ids.
	if _, ok := s.entries[s.head]; !ok {
		s.head = 0
		for seq := range s.entries {
			if seq > s.head {
				s.head = seq
			}
		}
	}
	return purged, freed, nil
}

// Mutate rewrites a stored entry in place, bypassing the append-only
// contract. Tests use it to simulate storage-level tampering.
func (s *InMemoryStore) Mutate(seq int64, fn func(*Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[seq]
	if !ok {
		return false
	}
	fn(entry)
	return true
}
