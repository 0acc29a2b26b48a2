package ledger

import (
	"context"
	"fmt"
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/batches"
	"stockledger/pkg/logger"
)

// Catalog resolves the products and warehouses a movement refers to.
type Catalog interface {
	// Product returns a NotFound AppError for unknown or inactive products.
	Product(ctx context.Context, productID id.ID) (*ProductInfo, error)
	// RequireWarehouse returns a NotFound AppError for unknown or inactive warehouses.
	RequireWarehouse(ctx context.Context, warehouseID id.ID) error
}

// Metrics receives ledger outcomes.
type Metrics interface {
	MovementRecorded(t MovementType)
	MovementRejected(code string)
}

type nopMetrics struct{}

func (nopMetrics) MovementRecorded(MovementType) {}
func (nopMetrics) MovementRejected(string)       {}

// Service records movements and answers balance queries.
type Service struct {
	stock     StockRepository
	movements MovementRepository
	batches   *batches.Tracker
	catalog   Catalog
	txManager tx.Manager
	numerator numerator.Generator
	events    domain.EventPublisher
	metrics   Metrics
	now       func() time.Time
}

// ServiceConfig wires the ledger service.
type ServiceConfig struct {
	Stock     StockRepository
	Movements MovementRepository
	Batches   *batches.Tracker
	Catalog   Catalog
	TxManager tx.Manager
	Numerator numerator.Generator

	// Optional
	Events  domain.EventPublisher
	Metrics Metrics
	Clock   func() time.Time
}

// NewService creates a ledger service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		stock:     cfg.Stock,
		movements: cfg.Movements,
		batches:   cfg.Batches,
		catalog:   cfg.Catalog,
		txManager: cfg.TxManager,
		numerator: cfg.Numerator,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		now:       cfg.Clock,
	}
	if s.events == nil {
		s.events = domain.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RecordMovement applies one movement to its balance and appends it to the log.
// It joins the caller's transaction when there is one.
func (s *Service) RecordMovement(ctx context.Context, req RecordRequest) (*Result, error) {
	if err := req.Validate(ctx); err != nil {
		s.reject(err)
		return nil, err
	}

	var result *Result
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.record(ctx, &req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		s.reject(err)
		return nil, err
	}

	if result.Replayed {
		logger.Info(ctx, "movement replayed",
			"movement_number", result.Movement.Number,
			"idempotency_key", req.IdempotencyKey,
		)
		return result, nil
	}

	s.metrics.MovementRecorded(req.Type)
	logger.Info(ctx, "movement recorded",
		"movement_number", result.Movement.Number,
		"type", req.Type,
		"product_id", req.ProductID,
		"warehouse_id", req.WarehouseID,
		"quantity", req.Quantity.String(),
		"stock_after", result.Movement.StockAfter.String(),
	)
	return result, nil
}

func (s *Service) record(ctx context.Context, req *RecordRequest) (*Result, error) {
	fingerprint := req.Fingerprint()
	if r, ok, err := s.replay(ctx, req.IdempotencyKey, fingerprint); err != nil || ok {
		return r, err
	}

	info, err := s.resolve(ctx, req.ProductID, req.WarehouseID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	bal, err := s.stock.GetOrCreateForUpdate(ctx, NewBalance(req.ProductID, req.WarehouseID, info, now))
	if err != nil {
		return nil, fmt.Errorf("lock balance: %w", err)
	}

	// A concurrent request with the same key may have committed while we waited on the lock.
	if r, ok, err := s.replay(ctx, req.IdempotencyKey, fingerprint); err != nil || ok {
		return r, err
	}

	return s.post(ctx, req, fingerprint, bal, info, now)
}

// replay returns the stored result for a repeated idempotency key.
func (s *Service) replay(ctx context.Context, key, fingerprint string) (*Result, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	existing, err := s.movements.GetByIdempotencyKey(ctx, key)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if fingerprint != "" && existing.RequestHash != fingerprint {
		return nil, false, apperror.NewIdempotencyMismatch(key)
	}
	bal, err := s.stock.Get(ctx, existing.ProductID, existing.WarehouseID)
	if err != nil {
		return nil, false, fmt.Errorf("load balance: %w", err)
	}
	return &Result{Movement: existing, Balance: bal, Replayed: true}, true, nil
}

func (s *Service) resolve(ctx context.Context, productID, warehouseID id.ID) (*ProductInfo, error) {
	info, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.RequireWarehouse(ctx, warehouseID); err != nil {
		return nil, err
	}
	return info, nil
}

// post applies req to the locked balance, then persists balance, movement and event.
// All checks run before the first write.
func (s *Service) post(ctx context.Context, req *RecordRequest, fingerprint string, bal *Balance, info *ProductInfo, now time.Time) (*Result, error) {
	stockBefore, reservedBefore := bal.Quantity, bal.ReservedQty
	unitCost, costGiven := movementCost(req, bal)

	var change types.Quantity
	switch req.Type.Direction() {
	case DirectionIn:
		if _, ok := bal.Quantity.CheckedAdd(req.Quantity); !ok {
			return nil, apperror.NewValidation("quantity would overflow the balance").
				WithDetail("field", "quantity")
		}
		change = req.Quantity
	case DirectionOut:
		if req.Quantity > bal.Quantity {
			return nil, apperror.NewInsufficientStock(req.ProductID.String(),
				req.Quantity.Float64(), bal.Quantity.Float64())
		}
		change = -req.Quantity
	case DirectionReserve:
		if req.Quantity > bal.AvailableQty() {
			return nil, apperror.NewInsufficientAvailableStock(req.ProductID.String(),
				req.Quantity.Float64(), bal.AvailableQty().Float64())
		}
	case DirectionRelease:
		if req.Quantity > bal.ReservedQty {
			return nil, apperror.NewOverRelease(req.ProductID.String(),
				req.Quantity.Float64(), bal.ReservedQty.Float64())
		}
	}

	var shortfall types.Quantity
	switch req.Type.Direction() {
	case DirectionIn:
		if costGiven {
			bal.AvgCostPrice = WeightedAverage(bal.Quantity, bal.AvgCostPrice, req.Quantity, unitCost)
			bal.LastCostPrice = unitCost
		}
		bal.Quantity += req.Quantity
		if key := req.Batch.Key(); key != "" {
			if _, err := s.batches.Receive(ctx, receiveRequest(req, unitCost, now)); err != nil {
				return nil, err
			}
		}
	case DirectionOut:
		bal.Quantity -= req.Quantity
		if bal.ReservedQty > bal.Quantity {
			bal.ReservedQty = bal.Quantity
		}
		consumption, err := s.batches.Consume(ctx, req.ProductID, req.WarehouseID, req.Quantity, now)
		if err != nil {
			return nil, err
		}
		if consumption.Shortfall > 0 && (info.TrackBatch || len(consumption.Allocations) > 0) {
			shortfall = consumption.Shortfall
			logger.Warn(ctx, "batch quantities do not cover outward movement",
				"product_id", req.ProductID,
				"warehouse_id", req.WarehouseID,
				"requested", req.Quantity.String(),
				"shortfall", shortfall.String(),
			)
		}
	case DirectionReserve:
		bal.ReservedQty += req.Quantity
	case DirectionRelease:
		bal.ReservedQty -= req.Quantity
	}

	number, err := s.numerator.Next(ctx, numerator.MovementConfig(), now)
	if err != nil {
		return nil, fmt.Errorf("generate movement number: %w", err)
	}

	mv := &Movement{
		ID:              id.New(),
		Number:          number,
		Type:            req.Type,
		ProductID:       req.ProductID,
		WarehouseID:     req.WarehouseID,
		Quantity:        req.Quantity,
		QuantityChange:  change,
		UnitCost:        unitCost,
		TotalCost:       totalCost(req.Quantity, unitCost),
		ReferenceType:   req.Reference.Type,
		ReferenceID:     clonePtr(req.Reference.ID),
		ReferenceNumber: req.Reference.Number,
		StockBefore:     stockBefore,
		StockAfter:      bal.Quantity,
		ReservedBefore:  reservedBefore,
		ReservedAfter:   bal.ReservedQty,
		IdempotencyKey:  strPtr(req.IdempotencyKey),
		RequestHash:     fingerprint,
		Notes:           req.Notes,
		CreatedAt:       now,
		CreatedBy:       appctx.GetUserID(ctx),
	}
	if req.Batch != nil {
		mv.BatchNumber = strPtr(req.Batch.Key())
		mv.LotNumber = strPtr(req.Batch.LotNumber)
	}

	if change != 0 {
		bal.LastMovementAt = &now
	}
	bal.UpdatedAt = now
	if err := s.stock.Save(ctx, bal); err != nil {
		return nil, fmt.Errorf("save balance: %w", err)
	}
	if err := s.movements.Insert(ctx, mv); err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	err = s.events.Publish(ctx, domain.DomainEvent{
		AggregateType: "stock_balance",
		AggregateID:   bal.ID,
		EventType:     domain.EventMovementRecorded,
		Payload: map[string]any{
			"movementId":     mv.ID,
			"movementNumber": mv.Number,
			"movementType":   mv.Type,
			"productId":      mv.ProductID,
			"warehouseId":    mv.WarehouseID,
			"quantityChange": mv.QuantityChange.String(),
			"stockAfter":     mv.StockAfter.String(),
			"reservedAfter":  mv.ReservedAfter.String(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("publish movement event: %w", err)
	}

	return &Result{Movement: mv, Balance: bal, BatchShortfall: shortfall}, nil
}

func receiveRequest(req *RecordRequest, unitCost types.Money, now time.Time) batches.ReceiveRequest {
	return batches.ReceiveRequest{
		ProductID:         req.ProductID,
		WarehouseID:       req.WarehouseID,
		BatchNumber:       req.Batch.BatchNumber,
		LotNumber:         req.Batch.LotNumber,
		Quantity:          req.Quantity,
		UnitCost:          unitCost,
		ManufacturingDate: req.Batch.ManufacturingDate,
		ExpiryDate:        req.Batch.ExpiryDate,
		VendorID:          req.Batch.VendorID,
		ReceivedAt:        now,
	}
}

func (s *Service) reject(err error) {
	if appErr, ok := apperror.AsAppError(err); ok {
		s.metrics.MovementRejected(appErr.Code)
		return
	}
	s.metrics.MovementRejected(apperror.CodeInternal)
}
