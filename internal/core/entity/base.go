package entity

import (
	"context"
	"time"

	"stockledger/internal/core/id"
)

// Validatable checks its own invariants without touching storage.
// Validate returns nil or a validation AppError.
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity is the identity part of every stored record. Version starts at 1
// and is bumped by the repository on each successful update.
type BaseEntity struct {
	ID           id.ID `db:"id" json:"id"`
	DeletionMark bool  `db:"deletion_mark" json:"deletionMark"`
	Version      int   `db:"version" json:"version"`
}

func newBaseEntity() BaseEntity {
	return BaseEntity{ID: id.New(), Version: 1}
}

func (b *BaseEntity) GetVersion() int { return b.Version }
func (b *BaseEntity) SetVersion(v int) { b.Version = v }
func (b *BaseEntity) IsDeleted() bool { return b.DeletionMark }
func (b *BaseEntity) MarkDeleted() { b.DeletionMark = true }
func (b *BaseEntity) SetDeletionMark(v bool) { b.DeletionMark = v }

// BaseDocument adds who/when bookkeeping to BaseEntity.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument stamps both timestamps with the current UTC time.
func NewBaseDocument() BaseDocument {
	d := BaseDocument{BaseEntity: newBaseEntity()}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	return d
}

// BaseCatalog is the record base of reference data.
type BaseCatalog struct {
	BaseEntity
}

func NewBaseCatalog() BaseCatalog {
	return BaseCatalog{BaseEntity: newBaseEntity()}
}
