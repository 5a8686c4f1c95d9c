package refreshtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
)

// PostgresStore persists refresh token records in PostgreSQL. Rotation
// atomicity comes from SELECT ... FOR UPDATE: concurrent consumers of the
// same hash serialize on the row lock and the loser sees revoked=TRUE.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed refresh token store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const refreshTokenColumns = `id, token_hash, subject_id, issued_at, expires_at, revoked, revoked_reason, revoked_at, client_address, client_agent`

func (s *PostgresStore) Add(ctx context.Context, record *models.RefreshTokenRecord) error {
	if record == nil {
		return fmt.Errorf("refresh token record is required")
	}
	query := `
		INSERT INTO refresh_tokens (` + refreshTokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.TokenHash,
		record.SubjectID,
		record.IssuedAt,
		record.ExpiresAt,
		record.Revoked,
		record.RevokedReason,
		nullTime(record.RevokedAt),
		record.ClientAddress,
		record.ClientAgent,
	)
	if err != nil {
		return fmt.Errorf("add refresh token: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin consume tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`
	record, err := scanRecord(tx.QueryRowContext(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock refresh token: %w", err)
	}

	if err := record.ValidateForRotation(now); err != nil {
		return nil, err
	}

	record.MarkRevoked(models.ReasonRotated, now)
	_, err = tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3
		WHERE token_hash = $1
	`, tokenHash, record.RevokedReason, nullTime(record.RevokedAt))
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) RevokeByHash(ctx context.Context, tokenHash, reason string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3
		WHERE token_hash = $1 AND revoked = FALSE
	`, tokenHash, reason, now)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke refresh token rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Zero rows means either already revoked (idempotent success) or absent.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refresh_tokens WHERE token_hash = $1)`, tokenHash,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check refresh token existence: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RevokeAllForSubject(ctx context.Context, subjectID uuid.UUID, reason string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_reason = $2, revoked_at = $3
		WHERE subject_id = $1 AND revoked = FALSE
	`, subjectID, reason, now)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for subject: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens rows: %w", err)
	}
	return int(rows), nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.RefreshTokenRecord, error) {
	var record models.RefreshTokenRecord
	var revokedReason sql.NullString
	var revokedAt sql.NullTime
	err := row.Scan(
		&record.ID,
		&record.TokenHash,
		&record.SubjectID,
		&record.IssuedAt,
		&record.ExpiresAt,
		&record.Revoked,
		&revokedReason,
		&revokedAt,
		&record.ClientAddress,
		&record.ClientAgent,
	)
	if err != nil {
		return nil, err
	}
	if revokedReason.Valid {
		record.RevokedReason = revokedReason.String
	}
	if revokedAt.Valid {
		record.RevokedAt = &revokedAt.Time
	}
	return &record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
