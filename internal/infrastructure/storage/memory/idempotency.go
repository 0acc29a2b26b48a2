package memory

import (
	"context"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/infrastructure/idempotency"
)

func cloneIdempotencyRecord(r *idempotency.Record) *idempotency.Record {
	c := *r
	c.Response = slices.Clone(r.Response)
	return &c
}

// IdempotencyStore implements idempotency.Store.
type IdempotencyStore struct {
	s   *Store
	ttl time.Duration
	now func() time.Time
}

// NewIdempotencyStore creates an idempotency store whose keys live for ttl.
func NewIdempotencyStore(s *Store, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{s: s, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// AcquireKey implements idempotency.Store.
func (st *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	var replay *idempotency.Replay
	err := st.s.write(ctx, func(t *txState) error {
		now := st.now()
		rec, ok := st.s.keys.get(key)
		if !ok || rec.ExpiresAt.Before(now) {
			st.s.keys.put(t, key, &idempotency.Record{
				Key:         key,
				UserID:      userID,
				Operation:   operation,
				Status:      idempotency.StatusPending,
				RequestHash: requestHash,
				CreatedAt:   now,
				UpdatedAt:   now,
				ExpiresAt:   now.Add(st.ttl),
			})
			return nil
		}

		if rec.UserID != userID || rec.Operation != operation || rec.RequestHash != requestHash {
			return apperror.NewIdempotencyMismatch(key).
				WithDetail("stored_operation", rec.Operation).
				WithDetail("request_operation", operation)
		}

		switch rec.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			replay = idempotency.ReplayOf(rec)
			return nil
		}
		if now.Sub(rec.UpdatedAt) <= idempotency.StaleAfter {
			return apperror.NewIdempotencyConflict(key)
		}
		rec.UpdatedAt = now
		st.s.keys.put(t, key, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replay, nil
}

// CompleteKey implements idempotency.Store.
func (st *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return st.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, response)
}

// FailKey implements idempotency.Store.
func (st *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return st.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, response)
}

func (st *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, response any) error {
	body, err := idempotency.EncodeResponse(response)
	if err != nil {
		return err
	}
	return st.s.write(ctx, func(t *txState) error {
		rec, ok := st.s.keys.get(key)
		if !ok {
			return nil
		}
		rec.Status = status
		rec.Response = body
		rec.StatusCode = statusCode
		rec.ContentType = contentType
		rec.UpdatedAt = st.now()
		st.s.keys.put(t, key, rec)
		return nil
	})
}

// CleanupExpired implements idempotency.Store.
func (st *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	var removed int64
	err := st.s.write(ctx, func(t *txState) error {
		now := st.now()
		for _, rec := range st.s.keys.scan(func(r *idempotency.Record) bool { return r.ExpiresAt.Before(now) }) {
			st.s.keys.remove(t, rec.Key)
			removed++
		}
		return nil
	})
	return removed, err
}
