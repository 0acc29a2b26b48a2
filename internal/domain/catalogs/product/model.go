// Package product provides the Product catalog: the stock-keeping items
// (flooring planks, tiles, doors, paints) that the ledger tracks.
package product

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
)

// Category groups products by business line.
type Category string

const (
	CategoryFlooring     Category = "flooring"
	CategoryFurniture    Category = "furniture"
	CategoryDoorsWindows Category = "doors_windows"
	CategoryPaints       Category = "paints"
	CategoryGeneral      Category = "general"
)

// Product is a stock-keeping item.
type Product struct {
	entity.Catalog

	Category Category `db:"category" json:"category"`

	// SKU is the vendor article
	SKU *string `db:"sku" json:"sku,omitempty"`

	// Unit is the stock unit (sqft, box, piece, litre)
	Unit string `db:"unit" json:"unit"`

	// SqftPerBox converts boxes to area for flooring lots
	SqftPerBox types.Quantity `db:"sqft_per_box" json:"sqftPerBox"`

	// CostPrice seeds the average cost of a balance created before any priced receipt
	CostPrice types.Money `db:"cost_price" json:"costPrice"`

	// Stock level defaults copied to a balance when it is first created
	ReorderLevel types.Quantity `db:"reorder_level" json:"reorderLevel"`
	SafetyStock  types.Quantity `db:"safety_stock" json:"safetyStock"`
	MaxStock     types.Quantity `db:"max_stock" json:"maxStock"`

	TrackBatch bool `db:"track_batch" json:"trackBatch"`
	IsActive   bool `db:"is_active" json:"isActive"`

	Specs entity.Attributes `db:"specs" json:"specs,omitempty"`
}

// NewProduct creates an active product measured in sqft.
func NewProduct(code, name string, category Category) *Product {
	return &Product{
		Catalog:  entity.NewCatalog(code, name),
		Category: category,
		Unit:     "sqft",
		IsActive: true,
	}
}

// GetCode implements domain.Coded.
func (p *Product) GetCode() string { return p.Code }

// SetCode implements domain.Coded.
func (p *Product) SetCode(code string) { p.Code = code }

// Validate implements entity.Validatable interface.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	switch p.Category {
	case CategoryFlooring, CategoryFurniture, CategoryDoorsWindows, CategoryPaints, CategoryGeneral:
	default:
		return apperror.NewValidation("invalid product category").
			WithDetail("field", "category").
			WithDetail("value", string(p.Category))
	}
	if p.Unit == "" {
		return apperror.NewValidation("unit is required").WithDetail("field", "unit")
	}
	if p.ReorderLevel.IsNegative() || p.SafetyStock.IsNegative() || p.MaxStock.IsNegative() {
		return apperror.NewValidation("stock levels must not be negative").WithDetail("field", "reorderLevel")
	}
	if p.CostPrice.IsNegative() {
		return apperror.NewValidation("cost price must not be negative").WithDetail("field", "costPrice")
	}
	if p.MaxStock.IsPositive() && p.ReorderLevel > p.MaxStock {
		return apperror.NewValidation("reorder level cannot exceed max stock").WithDetail("field", "reorderLevel")
	}
	return nil
}
