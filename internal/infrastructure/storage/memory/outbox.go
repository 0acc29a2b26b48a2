package memory

import (
	"context"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/events"
)

func cloneMessage(m *events.Message) *events.Message {
	c := *m
	c.Payload = slices.Clone(m.Payload)
	if m.LastError != nil {
		e := *m.LastError
		c.LastError = &e
	}
	if m.NextRetryAt != nil {
		t := *m.NextRetryAt
		c.NextRetryAt = &t
	}
	if m.PublishedAt != nil {
		t := *m.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

// Outbox implements domain.EventPublisher and events.Store.
type Outbox struct {
	s   *Store
	now func() time.Time
}

// NewOutbox creates the outbox.
func NewOutbox(s *Store) *Outbox {
	return &Outbox{s: s, now: time.Now}
}

var (
	_ domain.EventPublisher = (*Outbox)(nil)
	_ events.Store          = (*Outbox)(nil)
)

// Publish implements domain.EventPublisher. The message is part of the
// caller's unit of work and disappears with it on rollback.
func (o *Outbox) Publish(ctx context.Context, event domain.DomainEvent) error {
	msg, err := events.NewMessage(event, o.now())
	if err != nil {
		return err
	}
	return o.s.write(ctx, func(t *txState) error {
		o.s.outbox.put(t, msg.ID, msg)
		return nil
	})
}

// FetchPending implements events.Store.
func (o *Outbox) FetchPending(ctx context.Context, now time.Time, limit int) ([]*events.Message, error) {
	var out []*events.Message
	o.s.read(ctx, func() {
		out = o.s.outbox.scan(func(m *events.Message) bool {
			return m.Status == events.StatusPending && (m.NextRetryAt == nil || !m.NextRetryAt.After(now))
		})
	})
	return page(out, limit, 0), nil
}

// MarkPublished implements events.Store.
func (o *Outbox) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	return o.update(ctx, msgID, func(m *events.Message) {
		m.Status = events.StatusPublished
		m.PublishedAt = &at
	})
}

// MarkFailed implements events.Store.
func (o *Outbox) MarkFailed(ctx context.Context, msgID id.ID, cause string, nextRetry time.Time, maxRetries int) error {
	return o.update(ctx, msgID, func(m *events.Message) {
		m.RetryCount++
		m.LastError = &cause
		m.NextRetryAt = &nextRetry
		if m.RetryCount >= maxRetries {
			m.Status = events.StatusFailed
		}
	})
}

// Messages returns every message with the given status, oldest first.
func (o *Outbox) Messages(ctx context.Context, status events.Status) []*events.Message {
	var out []*events.Message
	o.s.read(ctx, func() {
		out = o.s.outbox.scan(func(m *events.Message) bool { return m.Status == status })
	})
	return out
}

func (o *Outbox) update(ctx context.Context, msgID id.ID, fn func(m *events.Message)) error {
	return o.s.write(ctx, func(t *txState) error {
		m, ok := o.s.outbox.get(msgID)
		if !ok {
			return apperror.NewNotFound("Outbox message", msgID.String())
		}
		fn(m)
		o.s.outbox.put(t, msgID, m)
		return nil
	})
}
