package bins

import (
	"context"

	"stockledger/internal/core/id"
)

// Repository defines persistence for bins.
type Repository interface {
	// Create inserts a bin. A code already used in the warehouse yields a Duplicate AppError.
	Create(ctx context.Context, b *Bin) error

	// CreateMany inserts bins in bulk.
	CreateMany(ctx context.Context, bins []*Bin) error

	GetByID(ctx context.Context, binID id.ID) (*Bin, error)
	GetByCode(ctx context.Context, warehouseID id.ID, code string) (*Bin, error)

	// GetForUpdate locks the bin row until the transaction ends.
	GetForUpdate(ctx context.Context, binID id.ID) (*Bin, error)

	// Update writes the bin if its version still matches, then bumps it.
	Update(ctx context.Context, b *Bin) error

	Delete(ctx context.Context, binID id.ID) error

	// List returns bins ordered by code.
	List(ctx context.Context, filter Filter) ([]*Bin, error)

	// ExistingCodes returns which of codes are already used in the warehouse.
	ExistingCodes(ctx context.Context, warehouseID id.ID, codes []string) ([]string, error)
}

// Filter narrows bin listings.
type Filter struct {
	WarehouseID   *id.ID
	Zone          string
	Rack          string
	AvailableOnly bool
}
