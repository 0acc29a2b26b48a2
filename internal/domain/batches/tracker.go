package batches

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// fifoPageSize bounds how many batches are locked per round trip.
const fifoPageSize = 50

// Tracker applies movements to batches. It must be called inside the
// transaction that holds the balance lock.
type Tracker struct {
	repo Repository
}

// NewTracker creates a batch tracker.
func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo}
}

// ReceiveRequest describes an inward quantity carrying batch identifiers.
type ReceiveRequest struct {
	ProductID   id.ID
	WarehouseID id.ID
	BatchNumber string
	LotNumber   string

	Quantity types.Quantity
	UnitCost types.Money

	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	VendorID          *id.ID

	ReceivedAt time.Time
}

// Receive tops up an existing batch (reactivating it) or creates a new one.
func (t *Tracker) Receive(ctx context.Context, req ReceiveRequest) (*Batch, error) {
	number := req.BatchNumber
	if number == "" {
		number = req.LotNumber
	}
	if number == "" {
		return nil, apperror.NewValidation("batch number is required").WithDetail("field", "batchNumber")
	}

	existing, err := t.repo.GetByNumber(ctx, req.ProductID, req.WarehouseID, number)
	switch {
	case err == nil:
		existing.Quantity += req.Quantity
		existing.OriginalQuantity += req.Quantity
		existing.Status = StatusActive
		existing.UpdatedAt = req.ReceivedAt
		if existing.ExpiryDate == nil && req.ExpiryDate != nil {
			existing.ExpiryDate = req.ExpiryDate
		}
		if err := t.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("update batch %s: %w", number, err)
		}
		return existing, nil
	case !apperror.IsNotFound(err):
		return nil, fmt.Errorf("get batch %s: %w", number, err)
	}

	b := &Batch{
		ID:                id.New(),
		ProductID:         req.ProductID,
		WarehouseID:       req.WarehouseID,
		BatchNumber:       number,
		Quantity:          req.Quantity,
		OriginalQuantity:  req.Quantity,
		UnitCost:          req.UnitCost,
		ManufacturingDate: req.ManufacturingDate,
		ExpiryDate:        req.ExpiryDate,
		ReceivedDate:      req.ReceivedAt,
		VendorID:          req.VendorID,
		Status:            StatusActive,
		CreatedAt:         req.ReceivedAt,
		UpdatedAt:         req.ReceivedAt,
	}
	if req.LotNumber != "" {
		lot := req.LotNumber
		b.LotNumber = &lot
	}
	if err := t.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch %s: %w", number, err)
	}
	return b, nil
}

// Consume drains qty from active batches, oldest first. A batch reaching zero is
// marked exhausted and kept. Whatever cannot be covered is returned as Shortfall.
func (t *Tracker) Consume(ctx context.Context, productID, warehouseID id.ID, qty types.Quantity, now time.Time) (Consumption, error) {
	var out Consumption
	remaining := qty

	for remaining > 0 {
		page, err := t.repo.ListActiveFIFO(ctx, productID, warehouseID, fifoPageSize)
		if err != nil {
			return out, fmt.Errorf("list active batches: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, b := range page {
			take := types.MinQuantity(b.Quantity, remaining)
			if take <= 0 {
				continue
			}
			b.Quantity -= take
			if b.Quantity == 0 {
				b.Status = StatusExhausted
			}
			b.UpdatedAt = now
			if err := t.repo.Update(ctx, b); err != nil {
				return out, fmt.Errorf("update batch %s: %w", b.BatchNumber, err)
			}

			out.Allocations = append(out.Allocations, Allocation{
				BatchID:     b.ID,
				BatchNumber: b.BatchNumber,
				Quantity:    take,
			})
			out.Consumed += take
			remaining -= take
			if remaining == 0 {
				break
			}
		}

		// A short page means every active batch has now been drained.
		if len(page) < fifoPageSize {
			break
		}
	}

	out.Shortfall = remaining
	return out, nil
}

// List returns batches matching the filter.
func (t *Tracker) List(ctx context.Context, filter Filter) ([]*Batch, error) {
	filter.Page = filter.Page.Normalize(100, 1000)
	return t.repo.List(ctx, filter)
}
