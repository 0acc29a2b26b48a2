package ledger

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// ReconcileRequest sets a balance to a physically counted quantity.
type ReconcileRequest struct {
	ProductID       id.ID
	WarehouseID     id.ID
	CountedQuantity types.Quantity
	Reference       Reference
	IdempotencyKey  string
	Notes           string
}

// ReconcileResult reports what a reconciliation posted.
type ReconcileResult struct {
	// Movement is nil when the live quantity already matched the count.
	Movement *Movement
	Balance  *Balance

	// LiveQuantity is the quantity found under the lock, before adjusting.
	LiveQuantity types.Quantity

	Replayed bool
}

// Reconcile locks the balance and posts adjustment_plus or adjustment_minus of
// |counted − live| so the balance ends at the counted quantity. Must run inside
// the caller's transaction when it is one step of a larger unit of work.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error) {
	if req.CountedQuantity.IsNegative() {
		return nil, apperror.NewValidation("counted quantity must not be negative").
			WithDetail("field", "countedQuantity")
	}

	var result *ReconcileResult
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if r, ok, err := s.replay(ctx, req.IdempotencyKey, ""); err != nil || ok {
			if ok {
				result = &ReconcileResult{
					Movement:     r.Movement,
					Balance:      r.Balance,
					LiveQuantity: r.Movement.StockBefore,
					Replayed:     true,
				}
			}
			return err
		}

		info, err := s.resolve(ctx, req.ProductID, req.WarehouseID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		bal, err := s.stock.GetOrCreateForUpdate(ctx, NewBalance(req.ProductID, req.WarehouseID, info, now))
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		result = &ReconcileResult{Balance: bal, LiveQuantity: bal.Quantity}
		delta := req.CountedQuantity - bal.Quantity
		if delta == 0 {
			return nil
		}

		mvType := MovementAdjustmentPlus
		if delta < 0 {
			mvType = MovementAdjustmentMinus
		}
		rec := &RecordRequest{
			Type:           mvType,
			ProductID:      req.ProductID,
			WarehouseID:    req.WarehouseID,
			Quantity:       delta.Abs(),
			Reference:      req.Reference,
			IdempotencyKey: req.IdempotencyKey,
			Notes:          req.Notes,
		}
		posted, err := s.post(ctx, rec, rec.Fingerprint(), bal, info, now)
		if err != nil {
			return err
		}
		result.Movement = posted.Movement
		result.Balance = posted.Balance
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	if result.Movement != nil && !result.Replayed {
		s.metrics.MovementRecorded(result.Movement.Type)
		logger.Info(ctx, "balance reconciled",
			"product_id", req.ProductID,
			"warehouse_id", req.WarehouseID,
			"live", result.LiveQuantity.String(),
			"counted", req.CountedQuantity.String(),
			"movement_number", result.Movement.Number,
		)
	}
	return result, nil
}
