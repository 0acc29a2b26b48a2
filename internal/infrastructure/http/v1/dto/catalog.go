package dto

import (
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
)

// --- Products ---

// ProductRequest is the body of POST /products and PUT /products/:id.
// Version is required on update.
type ProductRequest struct {
	Code         string            `json:"code" binding:"max=50"`
	Name         string            `json:"name" binding:"required,max=255"`
	Category     product.Category  `json:"category" binding:"required"`
	SKU          *string           `json:"sku"`
	Unit         string            `json:"unit" binding:"max=20"`
	SqftPerBox   types.Quantity    `json:"sqftPerBox"`
	CostPrice    types.Money       `json:"costPrice"`
	ReorderLevel types.Quantity    `json:"reorderLevel"`
	SafetyStock  types.Quantity    `json:"safetyStock"`
	MaxStock     types.Quantity    `json:"maxStock"`
	TrackBatch   bool              `json:"trackBatch"`
	IsActive     *bool             `json:"isActive"`
	Specs        entity.Attributes `json:"specs"`
	Version      int               `json:"version"`
}

// ToEntity converts DTO to domain entity.
func (r *ProductRequest) ToEntity() *product.Product {
	p := product.NewProduct(r.Code, r.Name, r.Category)
	r.apply(p)
	return p
}

// ApplyTo applies update DTO to existing entity.
func (r *ProductRequest) ApplyTo(p *product.Product) *product.Product {
	if r.Code != "" {
		p.Code = r.Code
	}
	p.Name = r.Name
	p.Category = r.Category
	r.apply(p)
	p.Version = r.Version
	return p
}

func (r *ProductRequest) apply(p *product.Product) {
	p.SKU = r.SKU
	if r.Unit != "" {
		p.Unit = r.Unit
	}
	p.SqftPerBox = r.SqftPerBox
	p.CostPrice = r.CostPrice
	p.ReorderLevel = r.ReorderLevel
	p.SafetyStock = r.SafetyStock
	p.MaxStock = r.MaxStock
	p.TrackBatch = r.TrackBatch
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	p.Specs = r.Specs
}

// --- Warehouses ---

// WarehouseRequest is the body of POST /warehouses and PUT /warehouses/:id.
type WarehouseRequest struct {
	Code     string                  `json:"code" binding:"max=50"`
	Name     string                  `json:"name" binding:"required,max=255"`
	Type     warehouse.WarehouseType `json:"type" binding:"required"`
	Address  *string                 `json:"address"`
	IsActive *bool                   `json:"isActive"`
	Version  int                     `json:"version"`
}

// ToEntity converts DTO to domain entity.
func (r *WarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name, r.Type)
	wh.Address = r.Address
	if r.IsActive != nil {
		wh.IsActive = *r.IsActive
	}
	return wh
}

// ApplyTo applies update DTO to existing entity.
func (r *WarehouseRequest) ApplyTo(wh *warehouse.Warehouse) *warehouse.Warehouse {
	if r.Code != "" {
		wh.Code = r.Code
	}
	wh.Name = r.Name
	wh.Type = r.Type
	wh.Address = r.Address
	if r.IsActive != nil {
		wh.IsActive = *r.IsActive
	}
	wh.Version = r.Version
	return wh
}
