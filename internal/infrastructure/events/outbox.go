// Package events moves domain events from the transactional outbox to the
// event stream. Writers append to the outbox inside their transaction; the
// worker's relay reads pending messages and hands them to a Sink.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

// Status represents the state of an outbox message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// DefaultMaxRetries is how often a message is retried before it is marked failed.
const DefaultMaxRetries = 5

// Message represents a message in the transactional outbox.
type Message struct {
	ID            id.ID           `db:"id" json:"id"`
	AggregateType string          `db:"aggregate_type" json:"aggregateType"`
	AggregateID   id.ID           `db:"aggregate_id" json:"aggregateId"`
	EventType     string          `db:"event_type" json:"eventType"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        Status          `db:"status" json:"status"`
	RetryCount    int             `db:"retry_count" json:"retryCount"`
	LastError     *string         `db:"last_error" json:"lastError,omitempty"`
	NextRetryAt   *time.Time      `db:"next_retry_at" json:"nextRetryAt,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	PublishedAt   *time.Time      `db:"published_at" json:"publishedAt,omitempty"`
}

// NewMessage encodes a domain event as a pending outbox message.
func NewMessage(event domain.DomainEvent, now time.Time) (*Message, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Message{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     now.UTC(),
	}, nil
}

// Store is the outbox as seen by the relay.
type Store interface {
	// FetchPending returns pending messages due at now, oldest first.
	FetchPending(ctx context.Context, now time.Time, limit int) ([]*Message, error)

	MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error

	// MarkFailed records a failed attempt. After maxRetries attempts the
	// message is marked failed and no longer fetched.
	MarkFailed(ctx context.Context, msgID id.ID, cause string, nextRetry time.Time, maxRetries int) error
}

// Sink delivers one message to the outside world.
type Sink interface {
	Send(ctx context.Context, msg *Message) error
}

// Relay reads and processes messages from the outbox.
type Relay struct {
	store      Store
	sink       Sink
	batchSize  int
	maxRetries int
	now        func() time.Time
}

// NewRelay creates a relay that delivers up to batchSize messages per run.
func NewRelay(store Store, sink Sink, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		store:      store,
		sink:       sink,
		batchSize:  batchSize,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
}

// ProcessBatch fetches and delivers pending messages.
// It returns the number of delivered messages; failed deliveries are rescheduled.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	now := r.now().UTC()
	messages, err := r.store.FetchPending(ctx, now, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := r.sink.Send(ctx, msg); err != nil {
			// Linear backoff: one more minute per attempt.
			next := now.Add(time.Duration(msg.RetryCount+1) * time.Minute)
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"retry", msg.RetryCount+1,
				"error", err,
			)
			if markErr := r.store.MarkFailed(ctx, msg.ID, err.Error(), next, r.maxRetries); markErr != nil {
				return processed, fmt.Errorf("mark outbox message failed: %w", markErr)
			}
			continue
		}
		if err := r.store.MarkPublished(ctx, msg.ID, now); err != nil {
			return processed, fmt.Errorf("mark outbox message published: %w", err)
		}
		processed++
	}
	return processed, nil
}
