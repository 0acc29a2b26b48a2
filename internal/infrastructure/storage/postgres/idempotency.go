package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/infrastructure/idempotency"
)

const idempotencyTable = "sys_idempotency"

var idempotencyColumns = ExtractDBColumns[idempotency.Record]()

// IdempotencyStore implements idempotency.Store on sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys live for ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

// AcquireKey implements idempotency.Store. The key row is locked while it is
// inspected, so two requests with one key cannot both acquire it.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		db := s.txManager.Querier(ctx)
		now := time.Now().UTC()

		var rec idempotency.Record
		err := Get(ctx, db, &rec, Builder().
			Select(idempotencyColumns...).
			From(idempotencyTable).
			Where(squirrel.Eq{"idempotency_key": key}).
			Suffix("FOR UPDATE"))
		switch {
		case NotFound(err):
			return s.claim(ctx, db, key, userID, operation, requestHash, now)
		case err != nil:
			return fmt.Errorf("load idempotency key: %w", err)
		}

		if rec.ExpiresAt.Before(now) {
			return s.claim(ctx, db, key, userID, operation, requestHash, now)
		}
		if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
			return apperror.NewIdempotencyMismatch(key).
				WithDetail("stored_operation", rec.Operation).
				WithDetail("request_operation", operation)
		}

		switch rec.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			replay = idempotency.ReplayOf(&rec)
			return nil
		}
		if now.Sub(rec.UpdatedAt) <= idempotency.StaleAfter {
			return apperror.NewIdempotencyConflict(key)
		}

		// A pending key nobody touched for a while belongs to a crashed request.
		_, err = Exec(ctx, db, Builder().
			Update(idempotencyTable).
			Set("updated_at", now).
			Where(squirrel.Eq{"idempotency_key": key}))
		if err != nil {
			return fmt.Errorf("reclaim idempotency key: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replay, nil
}

func (s *IdempotencyStore) claim(ctx context.Context, db Querier, key, userID, operation, requestHash string, now time.Time) error {
	rec := idempotency.Record{
		Key:         key,
		UserID:      userID,
		Operation:   operation,
		Status:      idempotency.StatusPending,
		RequestHash: requestHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	q := Builder().
		Insert(idempotencyTable).
		SetMap(StructToMap(rec)).
		Suffix(`ON CONFLICT (idempotency_key) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			operation = EXCLUDED.operation,
			status = EXCLUDED.status,
			request_hash = EXCLUDED.request_hash,
			response = NULL,
			response_status = 0,
			response_content_type = '',
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at`)
	if _, err := Exec(ctx, db, q); err != nil {
		return fmt.Errorf("claim idempotency key: %w", err)
	}
	return nil
}

// CompleteKey implements idempotency.Store.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey implements idempotency.Store.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	body, err := idempotency.EncodeResponse(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = Exec(ctx, s.txManager.Querier(ctx), Builder().
		Update(idempotencyTable).
		SetMap(map[string]any{
			"status":                status,
			"response":              body,
			"response_status":       statusCode,
			"response_content_type": contentType,
			"updated_at":            time.Now().UTC(),
		}).
		Where(squirrel.Eq{"idempotency_key": key}))
	if err != nil {
		return fmt.Errorf("finish idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired implements idempotency.Store.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := Exec(ctx, s.txManager.Querier(ctx), Builder().
		Delete(idempotencyTable).
		Where(squirrel.Lt{"expires_at": time.Now().UTC()}))
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
