package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/events"
	"stockledger/internal/infrastructure/storage/memory"
)

type failingSink struct{ calls int }

func (s *failingSink) Send(context.Context, *events.Message) error {
	s.calls++
	return errors.New("stream unavailable")
}

func newRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRelay_DeliversToStream(t *testing.T) {
	ctx := context.Background()
	client := newRedis(t)
	outbox := memory.NewOutbox(memory.New())

	lotID := id.New()
	require.NoError(t, outbox.Publish(ctx, domain.DomainEvent{
		AggregateType: "lot",
		AggregateID:   lotID,
		EventType:     domain.EventLotRelocated,
		Payload:       map[string]any{"lotNumber": "LOT-7"},
	}))
	require.NoError(t, outbox.Publish(ctx, domain.DomainEvent{
		AggregateType: "movement",
		AggregateID:   id.New(),
		EventType:     domain.EventMovementRecorded,
	}))

	relay := events.NewRelay(outbox, events.NewStreamSink(client, "", 0), 10)
	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := client.XRange(ctx, events.DefaultStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EventLotRelocated, entries[0].Values["event_type"])
	assert.Equal(t, lotID.String(), entries[0].Values["aggregate_id"])
	assert.JSONEq(t, `{"lotNumber":"LOT-7"}`, entries[0].Values["payload"].(string))

	assert.Empty(t, outbox.Messages(ctx, events.StatusPending))
	assert.Len(t, outbox.Messages(ctx, events.StatusPublished), 2)

	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "published messages are not sent again")
}

func TestRelay_ReschedulesFailedDelivery(t *testing.T) {
	ctx := context.Background()
	outbox := memory.NewOutbox(memory.New())
	require.NoError(t, outbox.Publish(ctx, domain.DomainEvent{EventType: domain.EventTransferDispatched}))

	sink := &failingSink{}
	relay := events.NewRelay(outbox, sink, 10)

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, sink.calls)

	pending := outbox.Messages(ctx, events.StatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	require.NotNil(t, pending[0].NextRetryAt)

	// The retry is not due yet.
	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, sink.calls)
}
