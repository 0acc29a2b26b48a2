package memory

import (
	"context"
	"slices"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/lots"
)

// LotRepo implements lots.Repository.
type LotRepo struct{ s *Store }

// NewLotRepo creates a lot repository.
func NewLotRepo(s *Store) *LotRepo { return &LotRepo{s: s} }

var _ lots.Repository = (*LotRepo)(nil)

// Create implements lots.Repository.
func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	return r.s.write(ctx, func(t *txState) error {
		dup := r.s.lots.scan(func(x *lots.Lot) bool { return x.LotNumber == lot.LotNumber })
		if len(dup) > 0 {
			return apperror.NewDuplicate("Lot", "lotNumber", lot.LotNumber)
		}
		r.s.lots.put(t, lot.ID, lot)
		return nil
	})
}

// GetByID implements lots.Repository.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	var (
		lot *lots.Lot
		ok  bool
	)
	r.s.read(ctx, func() { lot, ok = r.s.lots.get(lotID) })
	if !ok {
		return nil, apperror.NewNotFound("Lot", lotID.String())
	}
	return lot, nil
}

// GetForUpdate implements lots.Repository.
func (r *LotRepo) GetForUpdate(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	return r.GetByID(ctx, lotID)
}

// GetByNumber implements lots.Repository.
func (r *LotRepo) GetByNumber(ctx context.Context, lotNumber string) (*lots.Lot, error) {
	var found []*lots.Lot
	r.s.read(ctx, func() {
		found = r.s.lots.scan(func(l *lots.Lot) bool { return l.LotNumber == lotNumber })
	})
	if len(found) == 0 {
		return nil, apperror.NewNotFound("Lot", lotNumber)
	}
	return found[0], nil
}

// Update implements lots.Repository.
func (r *LotRepo) Update(ctx context.Context, lot *lots.Lot) error {
	return r.s.write(ctx, func(t *txState) error {
		stored, ok := r.s.lots.get(lot.ID)
		if !ok {
			return apperror.NewNotFound("Lot", lot.ID.String())
		}
		if stored.Version != lot.Version {
			return apperror.NewConcurrentModification("Lot", lot.ID.String())
		}
		lot.Version++
		r.s.lots.put(t, lot.ID, lot)
		return nil
	})
}

// List implements lots.Repository. The newest lots come first.
func (r *LotRepo) List(ctx context.Context, filter lots.Filter) (domain.ListResult[*lots.Lot], error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var all []*lots.Lot
	r.s.read(ctx, func() {
		all = r.s.lots.scan(func(l *lots.Lot) bool {
			switch {
			case filter.ProductID != nil && l.ProductID != *filter.ProductID,
				filter.WarehouseID != nil && l.WarehouseID != *filter.WarehouseID,
				filter.BinID != nil && (l.BinID == nil || *l.BinID != *filter.BinID),
				filter.Status != "" && l.Status != filter.Status,
				filter.QCStatus != "" && l.QCStatus != filter.QCStatus,
				filter.Shade != "" && l.Shade != filter.Shade,
				filter.Grade != "" && l.Grade != filter.Grade:
				return false
			}
			if search != "" {
				return strings.Contains(strings.ToLower(l.LotNumber), search) ||
					strings.Contains(strings.ToLower(l.Barcode), search)
			}
			return true
		})
	})
	slices.Reverse(all)
	return domain.ListResult[*lots.Lot]{
		Items:      page(all, filter.Limit, filter.Offset),
		TotalCount: int64(len(all)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// ListByBin implements lots.Repository.
func (r *LotRepo) ListByBin(ctx context.Context, binID id.ID) ([]*lots.Lot, error) {
	var out []*lots.Lot
	r.s.read(ctx, func() {
		out = r.s.lots.scan(func(l *lots.Lot) bool { return l.BinID != nil && *l.BinID == binID })
	})
	return out, nil
}

// UsageByBin implements lots.Repository.
func (r *LotRepo) UsageByBin(ctx context.Context, warehouseID *id.ID) (map[id.ID]lots.BinUsage, error) {
	usage := make(map[id.ID]lots.BinUsage)
	r.s.read(ctx, func() {
		for _, l := range r.s.lots.scan(nil) {
			if l.BinID == nil || (warehouseID != nil && l.WarehouseID != *warehouseID) {
				continue
			}
			u := usage[*l.BinID]
			u.Sqft += l.Sqft
			u.Count++
			usage[*l.BinID] = u
		}
	})
	return usage, nil
}
