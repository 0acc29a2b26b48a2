package lots

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository defines persistence for lots.
type Repository interface {
	Create(ctx context.Context, lot *Lot) error
	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)
	GetForUpdate(ctx context.Context, lotID id.ID) (*Lot, error)

	// GetByNumber returns the lot or NotFound. Lot numbers are unique.
	GetByNumber(ctx context.Context, lotNumber string) (*Lot, error)

	// Update writes the lot if its version still matches, then bumps it.
	Update(ctx context.Context, lot *Lot) error

	List(ctx context.Context, filter Filter) (domain.ListResult[*Lot], error)
	ListByBin(ctx context.Context, binID id.ID) ([]*Lot, error)

	// UsageByBin sums lot sqft per bin, optionally within one warehouse.
	UsageByBin(ctx context.Context, warehouseID *id.ID) (map[id.ID]BinUsage, error)
}

// Filter narrows lot listings.
type Filter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	BinID       *id.ID
	Status      Status
	QCStatus    QCStatus
	Shade       string
	Grade       string

	// Search matches lot number or barcode.
	Search string

	domain.Page
}
