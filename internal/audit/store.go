package audit

import (
	"context"
	"errors"
	"time"

	"trustcore/internal/sentinel"
)

// Filter narrows Query results. Zero values mean "any".
type Filter struct {
	Subject    string
	Category   Category
	Action     string
	EntityType string
	Severity   Severity
	Tier       Tier
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// Store is the persistence contract for audit entries.
//
// Append never rewrites an existing sequence id; the recorder is the single
// writer and guarantees ids arrive in increasing order. Lookups return
// sentinel.ErrNotFound for missing sequence ids. PurgeArchived refuses
// active-tier ids by contract; implementations only ever remove archived
// entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	GetBySequence(ctx context.Context, seq int64) (*Entry, error)

	// Head returns the entry with the highest sequence id across both
	// tiers, or sentinel.ErrNotFound for an empty store.
	Head(ctx context.Context) (*Entry, error)

	Query(ctx context.Context, filter Filter) ([]*Entry, error)

	// ListActiveOlderThan returns unflagged active-tier entries with a
	// timestamp before the cutoff, in sequence order.
	ListActiveOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error)

	// MarkArchived re-classifies an active entry into the archived tier.
	MarkArchived(ctx context.Context, seq int64, at time.Time) error

	// MarkFlagged records that an entry failed verification so operators
	// can localize the break. Flagged entries are excluded from archival.
	MarkFlagged(ctx context.Context, seq int64, reason string) error

	// ListArchivedOlderThan returns archived entries whose archival time is
	// before the cutoff, in sequence order.
	ListArchivedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error)

	// PurgeArchived physically removes archived entries and reports how
	// many were removed and the approximate bytes freed.
	PurgeArchived(ctx context.Context, seqs []int64) (int, int64, error)
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
