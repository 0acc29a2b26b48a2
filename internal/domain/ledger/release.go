package ledger

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
	"stockledger/pkg/logger"
)

// ReleaseHeld posts a release of at most req.Quantity, clamped to what the
// balance still holds in reserve. Outward movements shrink the reserve when
// they cut into it, so a document may hold more than the balance does. The
// result carries no movement when nothing was left to release.
func (s *Service) ReleaseHeld(ctx context.Context, req RecordRequest) (*Result, error) {
	if req.Type.Direction() != DirectionRelease {
		return nil, apperror.NewValidation("movement type does not release stock").
			WithDetail("field", "movementType").
			WithDetail("value", string(req.Type))
	}
	if err := req.Validate(ctx); err != nil {
		s.reject(err)
		return nil, err
	}

	var result *Result
	var wanted types.Quantity
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		info, err := s.resolve(ctx, req.ProductID, req.WarehouseID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		bal, err := s.stock.GetOrCreateForUpdate(ctx, NewBalance(req.ProductID, req.WarehouseID, info, now))
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}

		wanted = req.Quantity
		req.Quantity = types.MinQuantity(req.Quantity, bal.ReservedQty)
		if req.Quantity <= 0 {
			result = &Result{Balance: bal}
			return nil
		}
		result, err = s.post(ctx, &req, req.Fingerprint(), bal, info, now)
		return err
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	if req.Quantity < wanted {
		logger.Warn(ctx, "release clamped to the reserved balance",
			"product_id", req.ProductID,
			"warehouse_id", req.WarehouseID,
			"requested", wanted.String(),
			"released", req.Quantity.String(),
		)
	}
	if result.Movement != nil {
		s.metrics.MovementRecorded(req.Type)
	}
	return result, nil
}
