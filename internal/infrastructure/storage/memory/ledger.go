package memory

import (
	"context"
	"slices"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
)

type balanceKey struct {
	productID   id.ID
	warehouseID id.ID
}

func cloneBalance(b *ledger.Balance) *ledger.Balance {
	c := *b
	if b.LastMovementAt != nil {
		t := *b.LastMovementAt
		c.LastMovementAt = &t
	}
	return &c
}

// StockRepo implements ledger.StockRepository.
type StockRepo struct{ s *Store }

// NewStockRepo creates a balance repository.
func NewStockRepo(s *Store) *StockRepo { return &StockRepo{s: s} }

var _ ledger.StockRepository = (*StockRepo)(nil)

// GetOrCreateForUpdate implements ledger.StockRepository.
func (r *StockRepo) GetOrCreateForUpdate(ctx context.Context, seed *ledger.Balance) (*ledger.Balance, error) {
	var out *ledger.Balance
	err := r.s.write(ctx, func(t *txState) error {
		key := balanceKey{seed.ProductID, seed.WarehouseID}
		if b, ok := r.s.balances.get(key); ok {
			out = b
			return nil
		}
		r.s.balances.put(t, key, seed)
		out, _ = r.s.balances.get(key)
		return nil
	})
	return out, err
}

// Get implements ledger.StockRepository.
func (r *StockRepo) Get(ctx context.Context, productID, warehouseID id.ID) (*ledger.Balance, error) {
	var (
		b  *ledger.Balance
		ok bool
	)
	r.s.read(ctx, func() { b, ok = r.s.balances.get(balanceKey{productID, warehouseID}) })
	if !ok {
		return nil, apperror.NewNotFound("Stock balance", productID.String()+"/"+warehouseID.String())
	}
	return b, nil
}

// Save implements ledger.StockRepository.
func (r *StockRepo) Save(ctx context.Context, b *ledger.Balance) error {
	return r.s.write(ctx, func(t *txState) error {
		key := balanceKey{b.ProductID, b.WarehouseID}
		stored, ok := r.s.balances.get(key)
		if !ok {
			return apperror.NewNotFound("Stock balance", b.ID.String())
		}
		if stored.Version != b.Version {
			return apperror.NewConcurrentModification("Stock balance", b.ID.String())
		}
		b.Version++
		r.s.balances.put(t, key, b)
		return nil
	})
}

// List implements ledger.StockRepository. Balances are ordered by creation.
func (r *StockRepo) List(ctx context.Context, filter ledger.BalanceFilter) (domain.ListResult[*ledger.Balance], error) {
	var all []*ledger.Balance
	r.s.read(ctx, func() { all = r.s.balances.scan(balanceMatcher(filter)) })
	return domain.ListResult[*ledger.Balance]{
		Items:      page(all, filter.Limit, filter.Offset),
		TotalCount: int64(len(all)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// Summarize implements ledger.StockRepository.
func (r *StockRepo) Summarize(ctx context.Context, filter ledger.BalanceFilter) (ledger.BalanceSummary, error) {
	var all []*ledger.Balance
	r.s.read(ctx, func() { all = r.s.balances.scan(balanceMatcher(filter)) })
	var sum ledger.BalanceSummary
	for _, b := range all {
		sum.Add(b)
	}
	return sum, nil
}

func balanceMatcher(f ledger.BalanceFilter) func(*ledger.Balance) bool {
	return func(b *ledger.Balance) bool {
		if f.ProductID != nil && b.ProductID != *f.ProductID {
			return false
		}
		if f.WarehouseID != nil && b.WarehouseID != *f.WarehouseID {
			return false
		}
		if f.ExcludeZero && b.Quantity == 0 {
			return false
		}
		if f.LowStockOnly && b.AvailableQty() > b.ReorderLevel {
			return false
		}
		return true
	}
}

// MovementRepo implements ledger.MovementRepository.
type MovementRepo struct{ s *Store }

// NewMovementRepo creates a movement repository.
func NewMovementRepo(s *Store) *MovementRepo { return &MovementRepo{s: s} }

var _ ledger.MovementRepository = (*MovementRepo)(nil)

// Insert implements ledger.MovementRepository.
func (r *MovementRepo) Insert(ctx context.Context, m *ledger.Movement) error {
	return r.s.write(ctx, func(t *txState) error {
		if m.IdempotencyKey != nil {
			dup := r.s.movements.scan(func(x *ledger.Movement) bool {
				return x.IdempotencyKey != nil && *x.IdempotencyKey == *m.IdempotencyKey
			})
			if len(dup) > 0 {
				return apperror.NewConflict("movement with this idempotency key already exists").
					WithDetail("idempotencyKey", *m.IdempotencyKey)
			}
		}
		r.s.movements.put(t, m.ID, m)
		return nil
	})
}

// GetByID implements ledger.MovementRepository.
func (r *MovementRepo) GetByID(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	var (
		m  *ledger.Movement
		ok bool
	)
	r.s.read(ctx, func() { m, ok = r.s.movements.get(movementID) })
	if !ok {
		return nil, apperror.NewNotFound("Movement", movementID.String())
	}
	return m, nil
}

// GetByIdempotencyKey implements ledger.MovementRepository.
func (r *MovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Movement, error) {
	var found []*ledger.Movement
	r.s.read(ctx, func() {
		found = r.s.movements.scan(func(m *ledger.Movement) bool {
			return m.IdempotencyKey != nil && *m.IdempotencyKey == key
		})
	})
	if len(found) == 0 {
		return nil, apperror.NewNotFound("Movement", key)
	}
	return found[0], nil
}

// List implements ledger.MovementRepository. Newest movements come first.
func (r *MovementRepo) List(ctx context.Context, filter ledger.MovementFilter) (domain.ListResult[*ledger.Movement], error) {
	var all []*ledger.Movement
	r.s.read(ctx, func() { all = r.s.movements.scan(movementMatcher(filter)) })
	slices.Reverse(all)
	return domain.ListResult[*ledger.Movement]{
		Items:      page(all, filter.Limit, filter.Offset),
		TotalCount: int64(len(all)),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// Summarize implements ledger.MovementRepository.
func (r *MovementRepo) Summarize(ctx context.Context, filter ledger.MovementFilter) (ledger.MovementSummary, error) {
	var all []*ledger.Movement
	r.s.read(ctx, func() { all = r.s.movements.scan(movementMatcher(filter)) })
	var sum ledger.MovementSummary
	for _, m := range all {
		sum.Add(m)
	}
	return sum, nil
}

// ListForKey implements ledger.MovementRepository.
func (r *MovementRepo) ListForKey(ctx context.Context, productID, warehouseID id.ID) ([]*ledger.Movement, error) {
	var out []*ledger.Movement
	r.s.read(ctx, func() {
		out = r.s.movements.scan(func(m *ledger.Movement) bool {
			return m.ProductID == productID && m.WarehouseID == warehouseID
		})
	})
	return out, nil
}

func movementMatcher(f ledger.MovementFilter) func(*ledger.Movement) bool {
	return func(m *ledger.Movement) bool {
		if f.ProductID != nil && m.ProductID != *f.ProductID {
			return false
		}
		if f.WarehouseID != nil && m.WarehouseID != *f.WarehouseID {
			return false
		}
		if len(f.Types) > 0 && !slices.Contains(f.Types, m.Type) {
			return false
		}
		if f.BatchNumber != "" && (m.BatchNumber == nil || *m.BatchNumber != f.BatchNumber) {
			return false
		}
		if f.ReferenceType != "" && m.ReferenceType != f.ReferenceType {
			return false
		}
		if f.ReferenceID != nil && (m.ReferenceID == nil || *m.ReferenceID != *f.ReferenceID) {
			return false
		}
		if f.DateFrom != nil && m.CreatedAt.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && m.CreatedAt.After(*f.DateTo) {
			return false
		}
		return true
	}
}
