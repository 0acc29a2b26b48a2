// Package catalogs groups the reference data of the ledger and exposes it to
// the ledger through Lookup.
package catalogs

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
)

// Lookup resolves products and warehouses for the ledger and the workflows.
type Lookup struct {
	products   product.Repository
	warehouses warehouse.Repository
}

// NewLookup creates a catalog lookup.
func NewLookup(products product.Repository, warehouses warehouse.Repository) *Lookup {
	return &Lookup{products: products, warehouses: warehouses}
}

// Product implements ledger.Catalog.
func (l *Lookup) Product(ctx context.Context, productID id.ID) (*ledger.ProductInfo, error) {
	p, err := l.products.GetByID(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("Product", productID.String())
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, apperror.NewNotFound("Product", productID.String())
	}
	return &ledger.ProductInfo{
		ID:           p.ID,
		Code:         p.Code,
		Name:         p.Name,
		Unit:         p.Unit,
		CostPrice:    p.CostPrice,
		ReorderLevel: p.ReorderLevel,
		SafetyStock:  p.SafetyStock,
		MaxStock:     p.MaxStock,
		TrackBatch:   p.TrackBatch,
	}, nil
}

// RequireWarehouse implements ledger.Catalog.
func (l *Lookup) RequireWarehouse(ctx context.Context, warehouseID id.ID) error {
	w, err := l.warehouses.GetByID(ctx, warehouseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("Warehouse", warehouseID.String())
		}
		return err
	}
	if !w.IsActive {
		return apperror.NewNotFound("Warehouse", warehouseID.String())
	}
	return nil
}

var _ ledger.Catalog = (*Lookup)(nil)
