package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trustcore/internal/sentinel"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const entryColumns = `sequence_id, timestamp, subject, category, action, entity_type, entity_id,
	severity, before_state, after_state, entry_hash, previous_entry_hash, tier, archived_at,
	flagged, flag_reason`

func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.SequenceID,
		entry.Timestamp,
		entry.Subject,
		string(entry.Category),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		string(entry.Severity),
		entry.BeforeState,
		entry.AfterState,
		entry.EntryHash,
		entry.PreviousEntryHash,
		string(entry.Tier),
		nullTime(entry.ArchivedAt),
		entry.Flagged,
		entry.FlagReason,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBySequence(ctx context.Context, seq int64) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries WHERE sequence_id = $1`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, seq))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("audit entry %d: %w", seq, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get audit entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Head(ctx context.Context) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM audit_entries ORDER BY sequence_id DESC LIMIT 1`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get audit head: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]*Entry, error) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Subject != "" {
		add("subject = $%d", filter.Subject)
	}
	if filter.Category != "" {
		add("category = $%d", string(filter.Category))
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.Severity != "" {
		add("severity = $%d", string(filter.Severity))
	}
	if filter.Tier != "" {
		add("tier = $%d", string(filter.Tier))
	}
	if !filter.From.IsZero() {
		add("timestamp >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("timestamp <= $%d", filter.To)
	}

	query := `SELECT ` + entryColumns + ` FROM audit_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sequence_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) ListActiveOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE tier = 'active' AND flagged = FALSE AND timestamp < $1
		ORDER BY sequence_id ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list active audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) MarkArchived(ctx context.Context, seq int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_entries
		SET tier = 'archived', archived_at = $2
		WHERE sequence_id = $1 AND tier = 'active'
	`, seq, at)
	if err != nil {
		return fmt.Errorf("archive audit entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive audit entry rows: %w", err)
	}
	if rows == 0 {
		// Already archived or absent; distinguish for the caller.
		_, getErr := s.GetBySequence(ctx, seq)
		return getErr
	}
	return nil
}

func (s *PostgresStore) MarkFlagged(ctx context.Context, seq int64, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_entries
		SET flagged = TRUE, flag_reason = $2
		WHERE sequence_id = $1
	`, seq, reason)
	if err != nil {
		return fmt.Errorf("flag audit entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("flag audit entry rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListArchivedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM audit_entries
		WHERE tier = 'archived' AND archived_at < $1
		ORDER BY sequence_id ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list archived audit entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func (s *PostgresStore) PurgeArchived(ctx context.Context, seqs []int64) (int, int64, error) {
	if len(seqs) == 0 {
		return 0, 0, nil
	}

	var freed int64
	purged := 0
	for _, seq := range seqs {
		entry, err := s.GetBySequence(ctx, seq)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return purged, freed, err
		}
		if entry.Tier != TierArchived {
			continue
		}
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM audit_entries WHERE sequence_id = $1 AND tier = 'archived'`, seq)
		if err != nil {
			return purged, freed, fmt.Errorf("purge audit entry: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return purged, freed, fmt.Errorf("purge audit entry rows: %w", err)
		}
		if rows > 0 {
			purged++
			freed += approximateSize(entry)
		}
	}
	return purged, freed, nil
}

type entryRow interface {
	Scan(dest ...any) error
}

func scanEntry(row entryRow) (*Entry, error) {
	var entry Entry
	var category, severity, tier string
	var archivedAt sql.NullTime
	var flagReason sql.NullString
	err := row.Scan(
		&entry.SequenceID,
		&entry.Timestamp,
		&entry.Subject,
		&category,
		&entry.Action,
		&entry.EntityType,
		&entry.EntityID,
		&severity,
		&entry.BeforeState,
		&entry.AfterState,
		&entry.EntryHash,
		&entry.PreviousEntryHash,
		&tier,
		&archivedAt,
		&entry.Flagged,
		&flagReason,
	)
	if err != nil {
		return nil, err
	}
	entry.Category = Category(category)
	entry.Severity = Severity(severity)
	entry.Tier = Tier(tier)
	if archivedAt.Valid {
		entry.ArchivedAt = &archivedAt.Time
	}
	if flagReason.Valid {
		entry.FlagReason = flagReason.String
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
