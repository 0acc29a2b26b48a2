// Package warehouse provides the Warehouse catalog.
package warehouse

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
)

// WarehouseType defines the type of warehouse.
type WarehouseType string

const (
	TypeMain       WarehouseType = "main"
	TypeShowroom   WarehouseType = "showroom"
	TypeTransit    WarehouseType = "transit"
	TypeThirdParty WarehouseType = "third_party"
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.Catalog

	Type WarehouseType `db:"type" json:"type"`

	// Address is the physical address
	Address *string `db:"address" json:"address,omitempty"`

	// IsActive indicates if warehouse accepts movements
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewWarehouse creates an active warehouse.
func NewWarehouse(code, name string, whType WarehouseType) *Warehouse {
	return &Warehouse{
		Catalog:  entity.NewCatalog(code, name),
		Type:     whType,
		IsActive: true,
	}
}

// GetCode implements domain.Coded.
func (w *Warehouse) GetCode() string { return w.Code }

// SetCode implements domain.Coded.
func (w *Warehouse) SetCode(code string) { w.Code = code }

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}
	switch w.Type {
	case TypeMain, TypeShowroom, TypeTransit, TypeThirdParty:
		return nil
	}
	return apperror.NewValidation("invalid warehouse type").
		WithDetail("field", "type").
		WithDetail("value", string(w.Type))
}
