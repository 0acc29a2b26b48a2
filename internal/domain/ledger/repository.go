package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
)

// StockRepository persists balances.
type StockRepository interface {
	// GetOrCreateForUpdate returns the balance for seed's key, inserting seed when
	// no balance exists yet. The returned row is locked until the transaction ends.
	GetOrCreateForUpdate(ctx context.Context, seed *Balance) (*Balance, error)

	// Get returns the balance or a NotFound AppError.
	Get(ctx context.Context, productID, warehouseID id.ID) (*Balance, error)

	// Save writes a locked balance back, bumping its version.
	Save(ctx context.Context, b *Balance) error

	List(ctx context.Context, filter BalanceFilter) (domain.ListResult[*Balance], error)
	Summarize(ctx context.Context, filter BalanceFilter) (BalanceSummary, error)
}

// MovementRepository persists the append-only movement log.
type MovementRepository interface {
	// Insert appends a movement. A duplicate idempotency key yields a Conflict AppError.
	Insert(ctx context.Context, m *Movement) error

	GetByID(ctx context.Context, movementID id.ID) (*Movement, error)

	// GetByIdempotencyKey returns the movement recorded under key or NotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (*Movement, error)

	List(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error)
	Summarize(ctx context.Context, filter MovementFilter) (MovementSummary, error)

	// ListForKey returns every movement of one balance in creation order.
	ListForKey(ctx context.Context, productID, warehouseID id.ID) ([]*Movement, error)
}

// BalanceFilter narrows balance listings.
type BalanceFilter struct {
	ProductID   *id.ID
	WarehouseID *id.ID

	// ExcludeZero drops balances with nothing on hand.
	ExcludeZero bool

	// LowStockOnly keeps balances whose available quantity is at or below reorder level.
	LowStockOnly bool

	domain.Page
}

// BalanceSummary aggregates a balance listing.
type BalanceSummary struct {
	TotalItems      int64          `json:"totalItems"`
	TotalQuantity   types.Quantity `json:"totalQuantity"`
	TotalReserved   types.Quantity `json:"totalReserved"`
	TotalAvailable  types.Quantity `json:"totalAvailable"`
	TotalValue      types.Money    `json:"totalValue"`
	LowStockCount   int64          `json:"lowStockCount"`
	OutOfStockCount int64          `json:"outOfStockCount"`
}

// Add folds one balance into the summary.
func (s *BalanceSummary) Add(b *Balance) {
	s.TotalItems++
	s.TotalQuantity += b.Quantity
	s.TotalReserved += b.ReservedQty
	s.TotalAvailable += b.AvailableQty()
	s.TotalValue = s.TotalValue.Add(b.StockValue())
	switch avail := b.AvailableQty(); {
	case avail <= 0:
		s.OutOfStockCount++
	case avail <= b.ReorderLevel:
		s.LowStockCount++
	}
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID     *id.ID
	WarehouseID   *id.ID
	Types         []MovementType
	BatchNumber   string
	ReferenceType string
	ReferenceID   *id.ID
	DateFrom      *time.Time
	DateTo        *time.Time

	domain.Page
}

// MovementSummary aggregates a movement listing.
type MovementSummary struct {
	TotalIn   types.Quantity `json:"totalIn"`
	TotalOut  types.Quantity `json:"totalOut"`
	NetChange types.Quantity `json:"netChange"`
	Count     int64          `json:"count"`
}

// Add folds one movement into the summary.
func (s *MovementSummary) Add(m *Movement) {
	s.Count++
	if m.QuantityChange > 0 {
		s.TotalIn += m.QuantityChange
	} else {
		s.TotalOut -= m.QuantityChange
	}
	s.NetChange += m.QuantityChange
}
