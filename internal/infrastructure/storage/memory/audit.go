package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// AuditEntry is one recorded change.
type AuditEntry struct {
	ID         id.ID
	EntityType string
	EntityID   id.ID
	Action     domain.AuditAction
	UserID     string
	Changes    json.RawMessage
	CreatedAt  time.Time
}

func cloneAuditEntry(e *AuditEntry) *AuditEntry {
	c := *e
	c.Changes = slices.Clone(e.Changes)
	return &c
}

// AuditLog implements domain.AuditRecorder.
type AuditLog struct{ s *Store }

// NewAuditLog creates the audit log.
func NewAuditLog(s *Store) *AuditLog { return &AuditLog{s: s} }

var _ domain.AuditRecorder = (*AuditLog)(nil)

// LogChange implements domain.AuditRecorder.
func (a *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action domain.AuditAction, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	entry := &AuditEntry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		Changes:    raw,
		CreatedAt:  time.Now().UTC(),
	}
	return a.s.write(ctx, func(t *txState) error {
		a.s.audit.put(t, entry.ID, entry)
		return nil
	})
}

// Entries returns the history of one entity, oldest first.
func (a *AuditLog) Entries(ctx context.Context, entityType string, entityID id.ID) []*AuditEntry {
	var out []*AuditEntry
	a.s.read(ctx, func() {
		out = a.s.audit.scan(func(e *AuditEntry) bool {
			return e.EntityType == entityType && e.EntityID == entityID
		})
	})
	return out
}
