package batches

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository defines persistence for batches.
type Repository interface {
	// GetByNumber returns the batch for (product, warehouse, batchNumber) or NotFound.
	GetByNumber(ctx context.Context, productID, warehouseID id.ID, batchNumber string) (*Batch, error)

	// ListActiveFIFO returns active batches with remaining quantity, oldest
	// received first, ties by creation order. Rows are locked for update.
	ListActiveFIFO(ctx context.Context, productID, warehouseID id.ID, limit int) ([]*Batch, error)

	Create(ctx context.Context, b *Batch) error
	Update(ctx context.Context, b *Batch) error

	List(ctx context.Context, filter Filter) ([]*Batch, error)
}

// Filter narrows batch listings.
type Filter struct {
	ProductID   *id.ID
	WarehouseID *id.ID
	Status      Status
	BatchNumber string

	// ExpiringBefore keeps batches with an expiry date before the given time.
	ExpiringBefore *time.Time

	domain.Page
}
