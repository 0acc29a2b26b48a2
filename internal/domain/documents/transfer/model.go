// Package transfer provides stock transfers between warehouses: a
// transfer_out at the source on dispatch and a transfer_in at the destination
// for every receipt.
package transfer

import (
	"context"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Status of a transfer.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusApproved        Status = "approved"
	StatusInTransit       Status = "in_transit"
	StatusPartialReceived Status = "partial_received"
	StatusReceived        Status = "received"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// Transfer moves stock from one warehouse to another.
type Transfer struct {
	entity.Document

	FromWarehouseID id.ID      `db:"from_warehouse_id" json:"fromWarehouseId"`
	ToWarehouseID   id.ID      `db:"to_warehouse_id" json:"toWarehouseId"`
	ExpectedDate    *time.Time `db:"expected_date" json:"expectedDate,omitempty"`
	Status          Status     `db:"status" json:"status"`

	TotalQuantity    types.Quantity `db:"total_quantity" json:"totalQuantity"`
	ReceivedQuantity types.Quantity `db:"received_quantity" json:"receivedQuantity"`
	TotalValue       types.Money    `db:"total_value" json:"totalValue"`

	ApprovedBy   string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt   *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	DispatchedBy string     `db:"dispatched_by" json:"dispatchedBy,omitempty"`
	DispatchedAt *time.Time `db:"dispatched_at" json:"dispatchedAt,omitempty"`
	ReceivedBy   string     `db:"received_by" json:"receivedBy,omitempty"`
	ReceivedAt   *time.Time `db:"received_at" json:"receivedAt,omitempty"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	CancellationReason string `db:"cancellation_reason" json:"cancellationReason,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is one transferred product.
type Item struct {
	LineNo    int   `db:"line_no" json:"lineNo"`
	ProductID id.ID `db:"product_id" json:"productId"`

	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	ReceivedQuantity types.Quantity `db:"received_quantity" json:"receivedQuantity"`

	// UnitCost is the source average cost captured at creation.
	UnitCost    types.Money `db:"unit_cost" json:"unitCost"`
	BatchNumber string      `db:"batch_number" json:"batchNumber,omitempty"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
}

// Outstanding is the quantity dispatched but not yet received.
func (it *Item) Outstanding() types.Quantity {
	return it.Quantity - it.ReceivedQuantity
}

// NewTransfer creates a draft transfer.
func NewTransfer(from, to id.ID) *Transfer {
	return &Transfer{
		Document:        entity.NewDocument(),
		FromWarehouseID: from,
		ToWarehouseID:   to,
		Status:          StatusDraft,
		Items:           make([]Item, 0),
	}
}

// AddItem appends a line and recalculates totals.
func (t *Transfer) AddItem(item Item) {
	item.LineNo = len(t.Items) + 1
	t.Items = append(t.Items, item)
	t.Recalculate()
}

// Recalculate updates the totals from the items.
func (t *Transfer) Recalculate() {
	t.TotalQuantity = 0
	t.ReceivedQuantity = 0
	t.TotalValue = types.Zero()
	for _, it := range t.Items {
		t.TotalQuantity += it.Quantity
		t.ReceivedQuantity += it.ReceivedQuantity
		t.TotalValue = t.TotalValue.Add(it.Quantity.Mul(it.UnitCost).Round(2))
	}
}

// FullyReceived reports whether every item arrived.
func (t *Transfer) FullyReceived() bool {
	for i := range t.Items {
		if t.Items[i].Outstanding() > 0 {
			return false
		}
	}
	return true
}

// Validate implements entity.Validatable.
func (t *Transfer) Validate(_ context.Context) error {
	if id.IsNil(t.FromWarehouseID) || id.IsNil(t.ToWarehouseID) {
		return apperror.NewValidation("Source and destination warehouses are required").
			WithDetail("field", "fromWarehouseId")
	}
	if t.FromWarehouseID == t.ToWarehouseID {
		return apperror.NewValidation("Source and destination warehouses must be different").
			WithDetail("field", "toWarehouseId")
	}
	if len(t.Items) == 0 {
		return apperror.NewValidation("At least one item is required").
			WithDetail("field", "items")
	}
	for i, it := range t.Items {
		if id.IsNil(it.ProductID) || !it.Quantity.IsPositive() {
			return apperror.NewValidation("Each item must have productId and positive quantity").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (t *Transfer) Clone() *Transfer {
	c := *t
	c.History = t.History.Clone()
	c.Items = slices.Clone(t.Items)
	return &c
}
