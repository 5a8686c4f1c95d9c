package refreshtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trustcore/internal/auth/models"
	"trustcore/internal/sentinel"
)

const (
	recordKeyPrefix  = "refresh_token:"
	subjectKeyPrefix = "subject_tokens:"

	// forensicRetention keeps revoked and expired records readable for a
	// window past their natural expiry before Redis reclaims them. Physical
	// deletion is a store-level retention concern, not a service operation.
	forensicRetention = 30 * 24 * time.Hour

	// consumeRetries bounds WATCH retry attempts under contention.
	consumeRetries = 5
)

// recordJSON is the JSON-serializable representation of a RefreshTokenRecord.
// Timestamps are Unix nanoseconds.
type recordJSON struct {
	ID            string `json:"id"`
	TokenHash     string `json:"token_hash"`
	SubjectID     string `json:"subject_id"`
	IssuedAt      int64  `json:"issued_at"`
	ExpiresAt     int64  `json:"expires_at"`
	Revoked       bool   `json:"revoked"`
	RevokedReason string `json:"revoked_reason,omitempty"`
	RevokedAt     *int64 `json:"revoked_at,omitempty"`
	ClientAddress string `json:"client_address,omitempty"`
	ClientAgent   string `json:"client_agent,omitempty"`
}

func toJSON(r *models.RefreshTokenRecord) *recordJSON {
	j := &recordJSON{
		ID:            r.ID.String(),
		TokenHash:     r.TokenHash,
		SubjectID:     r.SubjectID.String(),
		IssuedAt:      r.IssuedAt.UnixNano(),
		ExpiresAt:     r.ExpiresAt.UnixNano(),
		Revoked:       r.Revoked,
		RevokedReason: r.RevokedReason,
		ClientAddress: r.ClientAddress,
		ClientAgent:   r.ClientAgent,
	}
	if r.RevokedAt != nil {
		ts := r.RevokedAt.UnixNano()
		j.RevokedAt = &ts
	}
	return j
}

func fromJSON(j *recordJSON) (*models.RefreshTokenRecord, error) {
	recordID, err := uuid.Parse(j.ID)
	if err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	subjectID, err := uuid.Parse(j.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("parse subject id: %w", err)
	}
	r := &models.RefreshTokenRecord{
		ID:            recordID,
		TokenHash:     j.TokenHash,
		SubjectID:     subjectID,
		IssuedAt:      time.Unix(0, j.IssuedAt),
		ExpiresAt:     time.Unix(0, j.ExpiresAt),
		Revoked:       j.Revoked,
		RevokedReason: j.RevokedReason,
		ClientAddress: j.ClientAddress,
		ClientAgent:   j.ClientAgent,
	}
	if j.RevokedAt != nil {
		t := time.Unix(0, *j.RevokedAt)
		r.RevokedAt = &t
	}
	return r, nil
}

// RedisStore persists refresh token records in Redis. This is the
// recommended implementation for distributed deployments where multiple
// instances share token state. Rotation atomicity uses WATCH/MULTI: a
// concurrent writer invalidates the transaction and the retry observes the
// revoked record.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed refresh token store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(tokenHash string) string {
	return recordKeyPrefix + tokenHash
}

func subjectKey(subjectID uuid.UUID) string {
	return subjectKeyPrefix + subjectID.String()
}

func recordTTL(r *models.RefreshTokenRecord, now time.Time) time.Duration {
	ttl := r.ExpiresAt.Sub(now) + forensicRetention
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}

func (s *RedisStore) Add(ctx context.Context, record *models.RefreshTokenRecord) error {
	payload, err := json.Marshal(toJSON(record))
	if err != nil {
		return fmt.Errorf("marshal refresh token record: %w", err)
	}

	key := recordKey(record.TokenHash)
	ok, err := s.client.SetNX(ctx, key, payload, recordTTL(record, time.Now())).Result()
	if err != nil {
		return fmt.Errorf("store refresh token record: %w", err)
	}
	if !ok {
		return sentinel.ErrInvalidState
	}
	if err := s.client.SAdd(ctx, subjectKey(record.SubjectID), record.TokenHash).Err(); err != nil {
		return fmt.Errorf("index refresh token by subject: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshTokenRecord, error) {
	payload, err := s.client.Get(ctx, recordKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get refresh token record: %w", err)
	}
	var j recordJSON
	if err := json.Unmarshal(payload, &j); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token record: %w", err)
	}
	return fromJSON(&j)
}

func (s *RedisStore) ConsumeByHash(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshTokenRecord, error) {
	key := recordKey(tokenHash)
	var consumed *models.RefreshTokenRecord

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return sentinel.ErrNotFound
			}
			return err
		}
		var j recordJSON
		if err := json.Unmarshal(payload, &j); err != nil {
			return err
		}
		record, err := fromJSON(&j)
		if err != nil {
			return err
		}
		if err := record.ValidateForRotation(now); err != nil {
			return err
		}
		record.MarkRevoked(models.ReasonRotated, now)

		updated, err := json.Marshal(toJSON(record))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		consumed = record
		return nil
	}

	for i := 0; i < consumeRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return consumed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) ||
			errors.Is(err, sentinel.ErrAlreadyRevoked) ||
			errors.Is(err, sentinel.ErrExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	return nil, fmt.Errorf("consume refresh token: %w", sentinel.ErrUnavailable)
}

func (s *RedisStore) RevokeByHash(ctx context.Context, tokenHash, reason string, now time.Time) error {
	key := recordKey(tokenHash)

	txn := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return sentinel.ErrNotFound
			}
			return err
		}
		var j recordJSON
		if err := json.Unmarshal(payload, &j); err != nil {
			return err
		}
		record, err := fromJSON(&j)
		if err != nil {
			return err
		}
		record.MarkRevoked(reason, now)

		updated, err := json.Marshal(toJSON(record))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < consumeRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return fmt.Errorf("revoke refresh token: %w", sentinel.ErrUnavailable)
}

func (s *RedisStore) RevokeAllForSubject(ctx context.Context, subjectID uuid.UUID, reason string, now time.Time) (int, error) {
	hashes, err := s.client.SMembers(ctx, subjectKey(subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list subject refresh tokens: %w", err)
	}

	revoked := 0
	for _, hash := range hashes {
		record, err := s.GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return revoked, err
		}
		if record.Revoked {
			continue
		}
		if err := s.RevokeByHash(ctx, hash, reason, now); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return revoked, err
		}
		revoked++
	}
	return revoked, nil
}
