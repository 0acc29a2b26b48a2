package dto

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// RecordMovementRequest is the body of POST /movements.
type RecordMovementRequest struct {
	MovementType string         `json:"movementType" binding:"required,movement_type"`
	ProductID    id.ID          `json:"productId" binding:"required"`
	WarehouseID  id.ID          `json:"warehouseId" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	UnitCost     *types.Money   `json:"unitCost"`

	BatchNumber       string     `json:"batchNumber" binding:"max=100"`
	LotNumber         string     `json:"lotNumber" binding:"max=100"`
	ManufacturingDate *time.Time `json:"manufacturingDate"`
	ExpiryDate        *time.Time `json:"expiryDate"`
	VendorID          *id.ID     `json:"vendorId"`

	ReferenceType   string `json:"referenceType" binding:"max=50"`
	ReferenceID     *id.ID `json:"referenceId"`
	ReferenceNumber string `json:"referenceNumber" binding:"max=100"`

	Notes string `json:"notes"`
}

// ToDomain converts the body; idempotencyKey comes from the request header.
func (r *RecordMovementRequest) ToDomain(idempotencyKey string) ledger.RecordRequest {
	req := ledger.RecordRequest{
		Type:        ledger.MovementType(r.MovementType),
		ProductID:   r.ProductID,
		WarehouseID: r.WarehouseID,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		Reference: ledger.Reference{
			Type:   r.ReferenceType,
			ID:     r.ReferenceID,
			Number: r.ReferenceNumber,
		},
		IdempotencyKey: idempotencyKey,
		Notes:          r.Notes,
	}
	if r.BatchNumber != "" || r.LotNumber != "" || r.ExpiryDate != nil || r.ManufacturingDate != nil {
		req.Batch = &ledger.BatchInfo{
			BatchNumber:       r.BatchNumber,
			LotNumber:         r.LotNumber,
			ManufacturingDate: r.ManufacturingDate,
			ExpiryDate:        r.ExpiryDate,
			VendorID:          r.VendorID,
		}
	}
	return req
}

// UpdatedStock is the balance after a movement.
type UpdatedStock struct {
	Quantity     types.Quantity `json:"quantity"`
	ReservedQty  types.Quantity `json:"reservedQty"`
	AvailableQty types.Quantity `json:"availableQty"`
	AvgCostPrice types.Money    `json:"avgCostPrice"`
}

// NewUpdatedStock projects b; nil stays nil.
func NewUpdatedStock(b *ledger.Balance) *UpdatedStock {
	if b == nil {
		return nil
	}
	return &UpdatedStock{
		Quantity:     b.Quantity,
		ReservedQty:  b.ReservedQty,
		AvailableQty: b.AvailableQty(),
		AvgCostPrice: b.AvgCostPrice,
	}
}

// MovementResult is the response of POST /movements.
type MovementResult struct {
	Movement       *ledger.Movement `json:"movement"`
	UpdatedStock   *UpdatedStock    `json:"updatedStock"`
	BatchShortfall types.Quantity   `json:"batchShortfall,omitempty"`
	Replayed       bool             `json:"replayed,omitempty"`
}

// FromResult converts a ledger result.
func FromResult(r *ledger.Result) MovementResult {
	return MovementResult{
		Movement:       r.Movement,
		UpdatedStock:   NewUpdatedStock(r.Balance),
		BatchShortfall: r.BatchShortfall,
		Replayed:       r.Replayed,
	}
}

// MovementQuery holds the filters of GET /movements.
type MovementQuery struct {
	ProductID     string `form:"productId"`
	WarehouseID   string `form:"warehouseId"`
	Types         string `form:"type"`
	BatchNumber   string `form:"batchNumber"`
	ReferenceType string `form:"referenceType"`
	ReferenceID   string `form:"referenceId"`
	DateFrom      string `form:"dateFrom"`
	DateTo        string `form:"dateTo"`
	PageQuery
}

// ToFilter parses the query into a movement filter.
func (q *MovementQuery) ToFilter() (ledger.MovementFilter, error) {
	var (
		f   ledger.MovementFilter
		err error
	)
	if f.ProductID, err = ParseOptionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.ReferenceID, err = ParseOptionalID("referenceId", q.ReferenceID); err != nil {
		return f, err
	}
	if f.DateFrom, err = ParseOptionalDate("dateFrom", q.DateFrom, false); err != nil {
		return f, err
	}
	if f.DateTo, err = ParseOptionalDate("dateTo", q.DateTo, true); err != nil {
		return f, err
	}
	for _, t := range SplitList(q.Types) {
		f.Types = append(f.Types, ledger.MovementType(t))
	}
	f.BatchNumber = q.BatchNumber
	f.ReferenceType = q.ReferenceType
	f.Page = q.Page()
	return f, nil
}

// BalanceQuery holds the filters of GET /stock.
type BalanceQuery struct {
	ProductID    string `form:"productId"`
	WarehouseID  string `form:"warehouseId"`
	ExcludeZero  bool   `form:"excludeZero"`
	LowStockOnly bool   `form:"lowStock"`
	PageQuery
}

// ToFilter parses the query into a balance filter.
func (q *BalanceQuery) ToFilter() (ledger.BalanceFilter, error) {
	var (
		f   ledger.BalanceFilter
		err error
	)
	if f.ProductID, err = ParseOptionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	f.ExcludeZero = q.ExcludeZero
	f.LowStockOnly = q.LowStockOnly
	f.Page = q.Page()
	return f, nil
}

// ReconcileRequest is the body of POST /stock/reconcile.
type ReconcileRequest struct {
	ProductID       id.ID          `json:"productId" binding:"required"`
	WarehouseID     id.ID          `json:"warehouseId" binding:"required"`
	CountedQuantity types.Quantity `json:"countedQuantity"`
	ReferenceType   string         `json:"referenceType"`
	ReferenceID     *id.ID         `json:"referenceId"`
	ReferenceNumber string         `json:"referenceNumber"`
	Notes           string         `json:"notes"`
}

// ToDomain converts the body.
func (r *ReconcileRequest) ToDomain(idempotencyKey string) ledger.ReconcileRequest {
	return ledger.ReconcileRequest{
		ProductID:       r.ProductID,
		WarehouseID:     r.WarehouseID,
		CountedQuantity: r.CountedQuantity,
		Reference: ledger.Reference{
			Type:   r.ReferenceType,
			ID:     r.ReferenceID,
			Number: r.ReferenceNumber,
		},
		IdempotencyKey: idempotencyKey,
		Notes:          r.Notes,
	}
}
