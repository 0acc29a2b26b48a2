// Package goods_receipt provides the goods receipt note (GRN) workflow:
// a draft listing the goods expected from a vendor, posted to the ledger once
// on receipt.
package goods_receipt

import (
	"context"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Status of a goods receipt.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// GoodsReceipt is a goods receipt note.
type GoodsReceipt struct {
	entity.Document

	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	VendorID    *id.ID `db:"vendor_id" json:"vendorId,omitempty"`

	// Vendor paperwork
	PurchaseOrderNumber string     `db:"purchase_order_number" json:"purchaseOrderNumber,omitempty"`
	InvoiceNumber       string     `db:"invoice_number" json:"invoiceNumber,omitempty"`
	InvoiceDate         *time.Time `db:"invoice_date" json:"invoiceDate,omitempty"`

	Status Status `db:"status" json:"status"`

	// Totals (calculated from items)
	TotalQuantity types.Quantity `db:"total_quantity" json:"totalQuantity"`
	TotalValue    types.Money    `db:"total_value" json:"totalValue"`

	ReceivedAt *time.Time `db:"received_at" json:"receivedAt,omitempty"`
	ReceivedBy string     `db:"received_by" json:"receivedBy,omitempty"`

	// Table part: expected goods
	Items []Item `db:"-" json:"items"`
}

// Item is one line of a goods receipt.
type Item struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
	LineValue types.Money    `db:"line_value" json:"lineValue"`

	BatchNumber       string     `db:"batch_number" json:"batchNumber,omitempty"`
	LotNumber         string     `db:"lot_number" json:"lotNumber,omitempty"`
	ManufacturingDate *time.Time `db:"manufacturing_date" json:"manufacturingDate,omitempty"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// MovementID is the ledger movement posted for this line on receipt.
	MovementID *id.ID `db:"movement_id" json:"movementId,omitempty"`
}

// NewGoodsReceipt creates a draft goods receipt.
func NewGoodsReceipt(warehouseID id.ID) *GoodsReceipt {
	return &GoodsReceipt{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		Status:      StatusDraft,
		Items:       make([]Item, 0),
	}
}

// AddItem appends a line and recalculates totals.
func (g *GoodsReceipt) AddItem(item Item) {
	item.LineID = id.New()
	item.LineNo = len(g.Items) + 1
	g.Items = append(g.Items, item)
	g.recalculateTotals()
}

// recalculateTotals updates document totals from items.
func (g *GoodsReceipt) recalculateTotals() {
	g.TotalQuantity = 0
	g.TotalValue = types.Zero()

	for i := range g.Items {
		line := &g.Items[i]
		line.LineValue = line.Quantity.Mul(line.UnitCost).Round(2)
		g.TotalQuantity += line.Quantity
		g.TotalValue = g.TotalValue.Add(line.LineValue)
	}
}

// Validate implements entity.Validatable.
func (g *GoodsReceipt) Validate(_ context.Context) error {
	if id.IsNil(g.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}

	if len(g.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, line := range g.Items {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if line.UnitCost.IsNegative() {
			return apperror.NewValidation("unit cost must not be negative").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// Clone returns a deep copy.
func (g *GoodsReceipt) Clone() *GoodsReceipt {
	c := *g
	c.History = g.History.Clone()
	c.Items = slices.Clone(g.Items)
	return &c
}
