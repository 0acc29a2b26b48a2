package memory

import (
	"context"
	"slices"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/batches"
)

// BatchRepo implements batches.Repository.
type BatchRepo struct{ s *Store }

// NewBatchRepo creates a batch repository.
func NewBatchRepo(s *Store) *BatchRepo { return &BatchRepo{s: s} }

var _ batches.Repository = (*BatchRepo)(nil)

// GetByNumber implements batches.Repository.
func (r *BatchRepo) GetByNumber(ctx context.Context, productID, warehouseID id.ID, batchNumber string) (*batches.Batch, error) {
	var found []*batches.Batch
	r.s.read(ctx, func() {
		found = r.s.batches.scan(func(b *batches.Batch) bool {
			return b.ProductID == productID && b.WarehouseID == warehouseID && b.BatchNumber == batchNumber
		})
	})
	if len(found) == 0 {
		return nil, apperror.NewNotFound("Batch", batchNumber)
	}
	return found[0], nil
}

// ListActiveFIFO implements batches.Repository.
func (r *BatchRepo) ListActiveFIFO(ctx context.Context, productID, warehouseID id.ID, limit int) ([]*batches.Batch, error) {
	var out []*batches.Batch
	r.s.read(ctx, func() {
		out = r.s.batches.scan(func(b *batches.Batch) bool {
			return b.ProductID == productID && b.WarehouseID == warehouseID &&
				b.Status == batches.StatusActive && b.Quantity > 0
		})
	})
	// scan keeps insertion order, so a stable sort breaks received-date ties by creation.
	slices.SortStableFunc(out, func(a, b *batches.Batch) int { return a.ReceivedDate.Compare(b.ReceivedDate) })
	return page(out, limit, 0), nil
}

// Create implements batches.Repository.
func (r *BatchRepo) Create(ctx context.Context, b *batches.Batch) error {
	return r.s.write(ctx, func(t *txState) error {
		dup := r.s.batches.scan(func(x *batches.Batch) bool {
			return x.ProductID == b.ProductID && x.WarehouseID == b.WarehouseID && x.BatchNumber == b.BatchNumber
		})
		if len(dup) > 0 {
			return apperror.NewDuplicate("Batch", "batchNumber", b.BatchNumber)
		}
		r.s.batches.put(t, b.ID, b)
		return nil
	})
}

// Update implements batches.Repository.
func (r *BatchRepo) Update(ctx context.Context, b *batches.Batch) error {
	return r.s.write(ctx, func(t *txState) error {
		if !r.s.batches.has(b.ID) {
			return apperror.NewNotFound("Batch", b.ID.String())
		}
		r.s.batches.put(t, b.ID, b)
		return nil
	})
}

// List implements batches.Repository. Batches are ordered by received date.
func (r *BatchRepo) List(ctx context.Context, filter batches.Filter) ([]*batches.Batch, error) {
	var out []*batches.Batch
	r.s.read(ctx, func() {
		out = r.s.batches.scan(func(b *batches.Batch) bool {
			if filter.ProductID != nil && b.ProductID != *filter.ProductID {
				return false
			}
			if filter.WarehouseID != nil && b.WarehouseID != *filter.WarehouseID {
				return false
			}
			if filter.Status != "" && b.Status != filter.Status {
				return false
			}
			if filter.BatchNumber != "" && b.BatchNumber != filter.BatchNumber {
				return false
			}
			if filter.ExpiringBefore != nil && (b.ExpiryDate == nil || !b.ExpiryDate.Before(*filter.ExpiringBefore)) {
				return false
			}
			return true
		})
	})
	slices.SortStableFunc(out, func(a, b *batches.Batch) int { return a.ReceivedDate.Compare(b.ReceivedDate) })
	return page(out, filter.Limit, filter.Offset), nil
}
