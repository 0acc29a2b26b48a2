package domain

import (
	"context"

	"stockledger/internal/core/id"
)

// Event types published by the ledger and the workflows.
const (
	EventMovementRecorded     = "stock.movement_recorded"
	EventGoodsReceiptReceived = "grn.received"
	EventCycleCountCompleted  = "cycle_count.completed"
	EventTransferDispatched   = "transfer.dispatched"
	EventTransferReceived     = "transfer.received"
	EventLotRelocated         = "lot.relocated"
)

// DomainEvent is an event written to the transactional outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events within the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, DomainEvent) error { return nil }

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionTransition AuditAction = "transition"
)

// AuditRecorder stores document change history.
type AuditRecorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action AuditAction, changes map[string]any) error
}

// NopAuditRecorder discards audit entries.
type NopAuditRecorder struct{}

// LogChange implements AuditRecorder.
func (NopAuditRecorder) LogChange(context.Context, string, id.ID, AuditAction, map[string]any) error {
	return nil
}
