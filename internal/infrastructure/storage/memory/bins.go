package memory

import (
	"context"
	"slices"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/bins"
)

// BinRepo implements bins.Repository.
type BinRepo struct{ s *Store }

// NewBinRepo creates a bin repository.
func NewBinRepo(s *Store) *BinRepo { return &BinRepo{s: s} }

var _ bins.Repository = (*BinRepo)(nil)

// Create implements bins.Repository.
func (r *BinRepo) Create(ctx context.Context, b *bins.Bin) error {
	return r.CreateMany(ctx, []*bins.Bin{b})
}

// CreateMany implements bins.Repository.
func (r *BinRepo) CreateMany(ctx context.Context, items []*bins.Bin) error {
	return r.s.write(ctx, func(t *txState) error {
		for _, b := range items {
			if r.codeTaken(b.WarehouseID, b.Code) {
				return apperror.NewDuplicate("Bin location", "code", b.Code)
			}
			r.s.bins.put(t, b.ID, b)
		}
		return nil
	})
}

func (r *BinRepo) codeTaken(warehouseID id.ID, code string) bool {
	return len(r.s.bins.scan(func(x *bins.Bin) bool {
		return x.WarehouseID == warehouseID && x.Code == code
	})) > 0
}

// GetByID implements bins.Repository.
func (r *BinRepo) GetByID(ctx context.Context, binID id.ID) (*bins.Bin, error) {
	var (
		b  *bins.Bin
		ok bool
	)
	r.s.read(ctx, func() { b, ok = r.s.bins.get(binID) })
	if !ok {
		return nil, apperror.NewNotFound("Bin location", binID.String())
	}
	return b, nil
}

// GetByCode implements bins.Repository.
func (r *BinRepo) GetByCode(ctx context.Context, warehouseID id.ID, code string) (*bins.Bin, error) {
	code = strings.TrimSpace(code)
	var found []*bins.Bin
	r.s.read(ctx, func() {
		found = r.s.bins.scan(func(b *bins.Bin) bool { return b.WarehouseID == warehouseID && b.Code == code })
	})
	if len(found) == 0 {
		return nil, apperror.NewNotFound("Bin location", code)
	}
	return found[0], nil
}

// GetForUpdate implements bins.Repository.
func (r *BinRepo) GetForUpdate(ctx context.Context, binID id.ID) (*bins.Bin, error) {
	return r.GetByID(ctx, binID)
}

// Update implements bins.Repository.
func (r *BinRepo) Update(ctx context.Context, b *bins.Bin) error {
	return r.s.write(ctx, func(t *txState) error {
		stored, ok := r.s.bins.get(b.ID)
		if !ok {
			return apperror.NewNotFound("Bin location", b.ID.String())
		}
		if stored.Version != b.Version {
			return apperror.NewConcurrentModification("Bin location", b.ID.String())
		}
		b.Version++
		r.s.bins.put(t, b.ID, b)
		return nil
	})
}

// Delete implements bins.Repository.
func (r *BinRepo) Delete(ctx context.Context, binID id.ID) error {
	return r.s.write(ctx, func(t *txState) error {
		if !r.s.bins.has(binID) {
			return apperror.NewNotFound("Bin location", binID.String())
		}
		r.s.bins.remove(t, binID)
		return nil
	})
}

// List implements bins.Repository.
func (r *BinRepo) List(ctx context.Context, filter bins.Filter) ([]*bins.Bin, error) {
	var out []*bins.Bin
	r.s.read(ctx, func() {
		out = r.s.bins.scan(func(b *bins.Bin) bool {
			switch {
			case filter.WarehouseID != nil && b.WarehouseID != *filter.WarehouseID,
				filter.Zone != "" && b.Zone != filter.Zone,
				filter.Rack != "" && b.Rack != filter.Rack:
				return false
			case filter.AvailableOnly:
				return b.Status == bins.StatusAvailable && b.Occupancy < b.Capacity
			}
			return true
		})
	})
	slices.SortStableFunc(out, func(a, b *bins.Bin) int { return strings.Compare(a.Code, b.Code) })
	return out, nil
}

// ExistingCodes implements bins.Repository.
func (r *BinRepo) ExistingCodes(ctx context.Context, warehouseID id.ID, codes []string) ([]string, error) {
	var taken []string
	r.s.read(ctx, func() {
		for _, b := range r.s.bins.scan(func(b *bins.Bin) bool { return b.WarehouseID == warehouseID }) {
			if slices.Contains(codes, b.Code) {
				taken = append(taken, b.Code)
			}
		}
	})
	return taken, nil
}
