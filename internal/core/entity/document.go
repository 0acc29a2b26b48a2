package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/core/id"
)

// Document is the base type for workflow documents (GRN, cycle count, transfer, reservation).
// Documents are status machines; every transition is appended to History.
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+year)
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Notes is an optional user comment
	Notes string `db:"notes" json:"notes,omitempty"`

	// History is the status audit trail (JSONB)
	History StatusHistory `db:"status_history" json:"statusHistory"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// RecordStatus appends a transition to the history.
// The version is left alone: repositories compare and bump it on update.
func (d *Document) RecordStatus(status, changedBy, notes string) {
	now := time.Now().UTC()
	d.History = append(d.History, StatusChange{
		Status:    status,
		ChangedBy: changedBy,
		ChangedAt: now,
		Notes:     notes,
	})
	d.UpdatedBy = changedBy
	d.UpdatedAt = now
}

// LastStatusChange returns the newest history entry, if any.
func (d *Document) LastStatusChange() (StatusChange, bool) {
	if len(d.History) == 0 {
		return StatusChange{}, false
	}
	return d.History[len(d.History)-1], true
}

// StatusChange is one entry of a document status trail.
type StatusChange struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changedBy,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
	Notes     string    `json:"notes,omitempty"`
}

// StatusHistory is stored as JSONB.
type StatusHistory []StatusChange

// Scan implements sql.Scanner.
func (h *StatusHistory) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StatusHistory: %T", src)
	}
	if len(raw) == 0 {
		*h = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]StatusChange)(h))
}

// Value implements driver.Valuer.
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]StatusChange(h))
}

// Clone returns a copy that does not share the backing array.
func (h StatusHistory) Clone() StatusHistory {
	if h == nil {
		return nil
	}
	return append(StatusHistory(nil), h...)
}
