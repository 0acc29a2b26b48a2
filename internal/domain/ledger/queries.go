package ledger

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/batches"
)

// DefaultMovementLimit is the page size of movement listings.
const DefaultMovementLimit = 100

// GetBalance returns the balance of one product in one warehouse.
func (s *Service) GetBalance(ctx context.Context, productID, warehouseID id.ID) (*Balance, error) {
	b, err := s.stock.Get(ctx, productID, warehouseID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("Stock balance", productID.String()+"/"+warehouseID.String())
		}
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// BalanceList is a page of balances plus a summary over the whole filter.
type BalanceList struct {
	domain.ListResult[*Balance]
	Summary BalanceSummary
}

// ListBalances returns balances with a summary.
func (s *Service) ListBalances(ctx context.Context, filter BalanceFilter) (*BalanceList, error) {
	filter.Page = filter.Page.Normalize(DefaultMovementLimit, 1000)

	page, err := s.stock.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	summary, err := s.stock.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize balances: %w", err)
	}
	return &BalanceList{ListResult: page, Summary: summary}, nil
}

// MovementList is a page of movements plus a summary over the whole filter.
type MovementList struct {
	domain.ListResult[*Movement]
	Summary MovementSummary
}

// ListMovements returns movements, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (*MovementList, error) {
	filter.Page = filter.Page.Normalize(DefaultMovementLimit, 1000)

	page, err := s.movements.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	summary, err := s.movements.Summarize(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summarize movements: %w", err)
	}
	return &MovementList{ListResult: page, Summary: summary}, nil
}

// GetMovement returns one movement.
func (s *Service) GetMovement(ctx context.Context, movementID id.ID) (*Movement, error) {
	m, err := s.movements.GetByID(ctx, movementID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("Movement", movementID.String())
		}
		return nil, err
	}
	return m, nil
}

// MovementByIdempotencyKey returns the movement recorded under key.
func (s *Service) MovementByIdempotencyKey(ctx context.Context, key string) (*Movement, error) {
	m, err := s.movements.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("Movement", key)
		}
		return nil, err
	}
	return m, nil
}

// ListBatches returns batches of a balance, optionally by status.
func (s *Service) ListBatches(ctx context.Context, filter batches.Filter) ([]*batches.Batch, error) {
	return s.batches.List(ctx, filter)
}

// ReplayReport compares a stored balance against the fold of its movements.
type ReplayReport struct {
	ProductID     id.ID `json:"productId"`
	WarehouseID   id.ID `json:"warehouseId"`
	MovementCount int   `json:"movementCount"`

	FoldedQuantity types.Quantity `json:"foldedQuantity"`
	FoldedReserved types.Quantity `json:"foldedReserved"`
	StoredQuantity types.Quantity `json:"storedQuantity"`
	StoredReserved types.Quantity `json:"storedReserved"`

	// BrokenChainAt is the number of the first movement whose stockBefore does
	// not continue the previous stockAfter.
	BrokenChainAt string `json:"brokenChainAt,omitempty"`

	Consistent bool `json:"consistent"`
}

// Replay folds the movement log of one balance and checks it against the stored row.
func (s *Service) Replay(ctx context.Context, productID, warehouseID id.ID) (*ReplayReport, error) {
	bal, err := s.GetBalance(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	movements, err := s.movements.ListForKey(ctx, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	report := &ReplayReport{
		ProductID:      productID,
		WarehouseID:    warehouseID,
		MovementCount:  len(movements),
		StoredQuantity: bal.Quantity,
		StoredReserved: bal.ReservedQty,
	}
	for _, m := range movements {
		if report.BrokenChainAt == "" && m.StockBefore != report.FoldedQuantity {
			report.BrokenChainAt = m.Number
		}
		report.FoldedQuantity += m.QuantityChange
		report.FoldedReserved += m.ReservedAfter - m.ReservedBefore
	}
	report.Consistent = report.BrokenChainAt == "" &&
		report.FoldedQuantity == report.StoredQuantity &&
		report.FoldedReserved == report.StoredReserved
	return report, nil
}
