package dto

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/documents/transfer"
)

// DocumentQuery holds the filters shared by the document list endpoints.
type DocumentQuery struct {
	ID          string `form:"id"`
	WarehouseID string `form:"warehouseId"`
	Status      string `form:"status"`
	DateFrom    string `form:"dateFrom"`
	DateTo      string `form:"dateTo"`
	Search      string `form:"search"`
	PageQuery
}

func (q *DocumentQuery) dates() (from, to *time.Time, err error) {
	if from, err = ParseOptionalDate("dateFrom", q.DateFrom, false); err != nil {
		return nil, nil, err
	}
	if to, err = ParseOptionalDate("dateTo", q.DateTo, true); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// --- Goods receipts ---

// GRNItemRequest is one line of a new GRN.
type GRNItemRequest struct {
	ProductID         id.ID          `json:"productId" binding:"required"`
	Quantity          types.Quantity `json:"quantity"`
	UnitCost          *types.Money   `json:"unitCost"`
	BatchNumber       string         `json:"batchNumber" binding:"max=100"`
	LotNumber         string         `json:"lotNumber" binding:"max=100"`
	ManufacturingDate *time.Time     `json:"manufacturingDate"`
	ExpiryDate        *time.Time     `json:"expiryDate"`
}

// CreateGRNRequest is the body of POST /grn.
type CreateGRNRequest struct {
	WarehouseID         id.ID            `json:"warehouseId" binding:"required"`
	VendorID            *id.ID           `json:"vendorId"`
	PurchaseOrderNumber string           `json:"purchaseOrderNumber" binding:"max=100"`
	InvoiceNumber       string           `json:"invoiceNumber" binding:"max=100"`
	InvoiceDate         *time.Time       `json:"invoiceDate"`
	Notes               string           `json:"notes"`
	Items               []GRNItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToDomain converts the body.
func (r *CreateGRNRequest) ToDomain() goods_receipt.CreateRequest {
	items := make([]goods_receipt.ItemRequest, len(r.Items))
	for i, it := range r.Items {
		items[i] = goods_receipt.ItemRequest{
			ProductID:         it.ProductID,
			Quantity:          it.Quantity,
			UnitCost:          it.UnitCost,
			BatchNumber:       it.BatchNumber,
			LotNumber:         it.LotNumber,
			ManufacturingDate: it.ManufacturingDate,
			ExpiryDate:        it.ExpiryDate,
		}
	}
	return goods_receipt.CreateRequest{
		WarehouseID:         r.WarehouseID,
		VendorID:            r.VendorID,
		PurchaseOrderNumber: r.PurchaseOrderNumber,
		InvoiceNumber:       r.InvoiceNumber,
		InvoiceDate:         r.InvoiceDate,
		Notes:               r.Notes,
		Items:               items,
	}
}

// GRNQuery holds the filters of GET /grn.
type GRNQuery struct {
	DocumentQuery
	VendorID string `form:"vendorId"`
}

// ToFilter parses the query.
func (q *GRNQuery) ToFilter() (goods_receipt.ListFilter, error) {
	var (
		f   goods_receipt.ListFilter
		err error
	)
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.VendorID, err = ParseOptionalID("vendorId", q.VendorID); err != nil {
		return f, err
	}
	if f.DateFrom, f.DateTo, err = q.dates(); err != nil {
		return f, err
	}
	f.Status = goods_receipt.Status(q.Status)
	f.Search = q.Search
	f.Page = q.Page()
	return f, nil
}

// --- Cycle counts ---

// CreateCycleCountRequest is the body of POST /cycle-counts.
type CreateCycleCountRequest struct {
	WarehouseID id.ID                 `json:"warehouseId" binding:"required"`
	ProductIDs  []id.ID               `json:"productIds"`
	CountType   cycle_count.CountType `json:"countType"`
	Notes       string                `json:"notes"`
}

// ToDomain converts the body.
func (r *CreateCycleCountRequest) ToDomain() cycle_count.CreateRequest {
	return cycle_count.CreateRequest{
		WarehouseID: r.WarehouseID,
		ProductIDs:  r.ProductIDs,
		CountType:   r.CountType,
		Notes:       r.Notes,
	}
}

// CountedItem is one counted quantity.
type CountedItem struct {
	ProductID       id.ID          `json:"productId" binding:"required"`
	CountedQuantity types.Quantity `json:"countedQuantity"`
	Notes           string         `json:"notes"`
}

// CycleCountActionRequest is the body of PUT /cycle-counts.
type CycleCountActionRequest struct {
	ActionRequest
	CountedItems []CountedItem `json:"countedItems" binding:"dive"`
}

// Entries converts the counted items.
func (r *CycleCountActionRequest) Entries() []cycle_count.CountEntry {
	out := make([]cycle_count.CountEntry, len(r.CountedItems))
	for i, it := range r.CountedItems {
		out[i] = cycle_count.CountEntry{
			ProductID:       it.ProductID,
			CountedQuantity: it.CountedQuantity,
			Notes:           it.Notes,
		}
	}
	return out
}

// CycleCountQuery holds the filters of GET /cycle-counts.
type CycleCountQuery struct {
	DocumentQuery
	CountType string `form:"countType"`
}

// ToFilter parses the query.
func (q *CycleCountQuery) ToFilter() (cycle_count.ListFilter, error) {
	var (
		f   cycle_count.ListFilter
		err error
	)
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.DateFrom, f.DateTo, err = q.dates(); err != nil {
		return f, err
	}
	f.Status = cycle_count.Status(q.Status)
	f.CountType = cycle_count.CountType(q.CountType)
	f.Page = q.Page()
	return f, nil
}

// --- Transfers ---

// TransferItemRequest is one line of a new transfer.
type TransferItemRequest struct {
	ProductID   id.ID          `json:"productId" binding:"required"`
	Quantity    types.Quantity `json:"quantity"`
	BatchNumber string         `json:"batchNumber" binding:"max=100"`
	Notes       string         `json:"notes"`
}

// CreateTransferRequest is the body of POST /transfers.
type CreateTransferRequest struct {
	FromWarehouseID id.ID                 `json:"fromWarehouseId" binding:"required"`
	ToWarehouseID   id.ID                 `json:"toWarehouseId" binding:"required"`
	ExpectedDate    *time.Time            `json:"expectedDate"`
	Notes           string                `json:"notes"`
	Items           []TransferItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToDomain converts the body.
func (r *CreateTransferRequest) ToDomain() transfer.CreateRequest {
	items := make([]transfer.ItemRequest, len(r.Items))
	for i, it := range r.Items {
		items[i] = transfer.ItemRequest{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			BatchNumber: it.BatchNumber,
			Notes:       it.Notes,
		}
	}
	return transfer.CreateRequest{
		FromWarehouseID: r.FromWarehouseID,
		ToWarehouseID:   r.ToWarehouseID,
		ExpectedDate:    r.ExpectedDate,
		Notes:           r.Notes,
		Items:           items,
	}
}

// ReceivedItemRequest is one received quantity.
type ReceivedItemRequest struct {
	ProductID id.ID          `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
}

// TransferActionRequest is the body of PUT /transfers.
type TransferActionRequest struct {
	ActionRequest
	ReceivedItems []ReceivedItemRequest `json:"receivedItems" binding:"dive"`
}

// Received converts the received items.
func (r *TransferActionRequest) Received() []transfer.ReceivedItem {
	out := make([]transfer.ReceivedItem, len(r.ReceivedItems))
	for i, it := range r.ReceivedItems {
		out[i] = transfer.ReceivedItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

// TransferQuery holds the filters of GET /transfers.
type TransferQuery struct {
	DocumentQuery
	FromWarehouseID string `form:"fromWarehouseId"`
	ToWarehouseID   string `form:"toWarehouseId"`
}

// ToFilter parses the query.
func (q *TransferQuery) ToFilter() (transfer.ListFilter, error) {
	var (
		f   transfer.ListFilter
		err error
	)
	if f.FromWarehouseID, err = ParseOptionalID("fromWarehouseId", q.FromWarehouseID); err != nil {
		return f, err
	}
	if f.ToWarehouseID, err = ParseOptionalID("toWarehouseId", q.ToWarehouseID); err != nil {
		return f, err
	}
	if f.DateFrom, f.DateTo, err = q.dates(); err != nil {
		return f, err
	}
	f.Status = transfer.Status(q.Status)
	f.Page = q.Page()
	return f, nil
}

// --- Reservations ---

// CreateReservationRequest is the body of POST /reservations.
type CreateReservationRequest struct {
	ProductID    id.ID          `json:"productId" binding:"required"`
	WarehouseID  id.ID          `json:"warehouseId" binding:"required"`
	Quantity     types.Quantity `json:"quantity"`
	UnitPrice    types.Money    `json:"unitPrice"`
	RefType      string         `json:"refType" binding:"required,max=50"`
	RefID        string         `json:"refId" binding:"max=100"`
	RefNumber    string         `json:"refNumber" binding:"max=100"`
	CustomerName string         `json:"customerName" binding:"max=255"`
	ExpiresAt    *time.Time     `json:"expiresAt"`
	Notes        string         `json:"notes"`
}

// ToDomain converts the body; idempotencyKey comes from the request header.
func (r *CreateReservationRequest) ToDomain(idempotencyKey string) reservation.CreateRequest {
	return reservation.CreateRequest{
		ProductID:      r.ProductID,
		WarehouseID:    r.WarehouseID,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice,
		RefType:        r.RefType,
		RefID:          r.RefID,
		RefNumber:      r.RefNumber,
		CustomerName:   r.CustomerName,
		ExpiresAt:      r.ExpiresAt,
		Notes:          r.Notes,
		IdempotencyKey: idempotencyKey,
	}
}

// ReservationActionRequest is the body of PUT /reservations.
type ReservationActionRequest struct {
	ActionRequest
	Quantity  types.Quantity `json:"quantity"`
	ExpiresAt *time.Time     `json:"expiresAt"`
}

// ReservationQuery holds the filters of GET /reservations.
type ReservationQuery struct {
	DocumentQuery
	ProductID string `form:"productId"`
	RefType   string `form:"refType"`
	RefID     string `form:"refId"`
}

// ToFilter parses the query.
func (q *ReservationQuery) ToFilter() (reservation.ListFilter, error) {
	var (
		f   reservation.ListFilter
		err error
	)
	if f.ProductID, err = ParseOptionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	f.Status = reservation.Status(q.Status)
	f.RefType = q.RefType
	f.RefID = q.RefID
	f.Page = q.Page()
	return f, nil
}
