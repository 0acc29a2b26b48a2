package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/events"
)

const outboxTable = "sys_outbox"

// ClaimLease is how long a fetched message stays hidden from other relays.
const ClaimLease = 5 * time.Minute

var outboxColumns = ExtractDBColumns[events.Message]()

// Outbox implements domain.EventPublisher and events.Store on sys_outbox.
type Outbox struct {
	txManager *TxManager
}

var (
	_ domain.EventPublisher = (*Outbox)(nil)
	_ events.Store          = (*Outbox)(nil)
)

// NewOutbox creates the outbox.
func NewOutbox(txManager *TxManager) *Outbox {
	return &Outbox{txManager: txManager}
}

// Publish implements domain.EventPublisher. The message is inserted in the
// caller's transaction and is rolled back with it.
func (o *Outbox) Publish(ctx context.Context, event domain.DomainEvent) error {
	msg, err := events.NewMessage(event, time.Now())
	if err != nil {
		return err
	}
	q := Builder().Insert(outboxTable).SetMap(StructToMap(msg))
	if _, err := Exec(ctx, o.txManager.Querier(ctx), q); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// FetchPending implements events.Store. The returned messages are leased:
// their next_retry_at moves ClaimLease ahead, so concurrent relays skip them
// until they are marked or the lease runs out.
func (o *Outbox) FetchPending(ctx context.Context, now time.Time, limit int) ([]*events.Message, error) {
	due := Builder().
		Select("id").
		From(outboxTable).
		Where(squirrel.Eq{"status": events.StatusPending}).
		Where(squirrel.Or{
			squirrel.Eq{"next_retry_at": nil},
			squirrel.LtOrEq{"next_retry_at": now},
		}).
		OrderBy("created_at").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")

	q := Builder().
		Update(outboxTable).
		Set("next_retry_at", now.Add(ClaimLease)).
		Where(squirrel.Expr("id IN (?)", due)).
		Suffix("RETURNING " + strings.Join(outboxColumns, ", "))

	var out []*events.Message
	if err := Select(ctx, o.txManager.Querier(ctx), &out, q); err != nil {
		return nil, fmt.Errorf("fetch outbox messages: %w", err)
	}
	slices.SortFunc(out, func(a, b *events.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// MarkPublished implements events.Store.
func (o *Outbox) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	_, err := Exec(ctx, o.txManager.Querier(ctx), Builder().
		Update(outboxTable).
		Set("status", events.StatusPublished).
		Set("published_at", at).
		Set("next_retry_at", nil).
		Where(squirrel.Eq{"id": msgID}))
	if err != nil {
		return fmt.Errorf("mark outbox message published: %w", err)
	}
	return nil
}

// MarkFailed implements events.Store.
func (o *Outbox) MarkFailed(ctx context.Context, msgID id.ID, cause string, nextRetry time.Time, maxRetries int) error {
	_, err := Exec(ctx, o.txManager.Querier(ctx), Builder().
		Update(outboxTable).
		Set("retry_count", squirrel.Expr("retry_count + 1")).
		Set("last_error", cause).
		Set("next_retry_at", nextRetry).
		Set("status", squirrel.Expr("CASE WHEN retry_count + 1 >= ? THEN ? ELSE status END", maxRetries, events.StatusFailed)).
		Where(squirrel.Eq{"id": msgID}))
	if err != nil {
		return fmt.Errorf("mark outbox message failed: %w", err)
	}
	return nil
}

// Purge deletes published messages older than before.
func (o *Outbox) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := Exec(ctx, o.txManager.Querier(ctx), Builder().
		Delete(outboxTable).
		Where(squirrel.Eq{"status": events.StatusPublished}).
		Where(squirrel.Lt{"published_at": before}))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return tag.RowsAffected(), nil
}
