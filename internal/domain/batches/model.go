// Package batches tracks batch sub-allocations of a stock balance.
// Inward movements create or top up a batch; outward movements drain
// active batches oldest first.
package batches

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Status of a batch.
type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
)

// Batch is a received quantity of one product in one warehouse sharing a
// batch number. Quantity is what remains and never goes negative.
type Batch struct {
	ID          id.ID   `db:"id" json:"id"`
	ProductID   id.ID   `db:"product_id" json:"productId"`
	WarehouseID id.ID   `db:"warehouse_id" json:"warehouseId"`
	BatchNumber string  `db:"batch_number" json:"batchNumber"`
	LotNumber   *string `db:"lot_number" json:"lotNumber,omitempty"`

	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	OriginalQuantity types.Quantity `db:"original_quantity" json:"originalQuantity"`
	UnitCost         types.Money    `db:"unit_cost" json:"unitCost"`

	ManufacturingDate *time.Time `db:"manufacturing_date" json:"manufacturingDate,omitempty"`
	ExpiryDate        *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	ReceivedDate      time.Time  `db:"received_date" json:"receivedDate"`
	VendorID          *id.ID     `db:"vendor_id" json:"vendorId,omitempty"`

	Status    Status    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy.
func (b *Batch) Clone() *Batch {
	c := *b
	if b.LotNumber != nil {
		v := *b.LotNumber
		c.LotNumber = &v
	}
	if b.ManufacturingDate != nil {
		v := *b.ManufacturingDate
		c.ManufacturingDate = &v
	}
	if b.ExpiryDate != nil {
		v := *b.ExpiryDate
		c.ExpiryDate = &v
	}
	if b.VendorID != nil {
		v := *b.VendorID
		c.VendorID = &v
	}
	return &c
}

// IsExpired reports whether the batch expired before now.
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(now)
}

// ExpiresWithin reports whether the batch is still valid but expires within d.
func (b *Batch) ExpiresWithin(now time.Time, d time.Duration) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.Before(now) && b.ExpiryDate.Before(now.Add(d))
}

// Value is remaining quantity × unit cost.
func (b *Batch) Value() types.Money {
	return b.Quantity.Mul(b.UnitCost)
}

// Allocation is the part of an outward quantity taken from one batch.
type Allocation struct {
	BatchID     id.ID          `json:"batchId"`
	BatchNumber string         `json:"batchNumber"`
	Quantity    types.Quantity `json:"quantity"`
}

// Consumption is the result of a FIFO drain.
type Consumption struct {
	Allocations []Allocation
	Consumed    types.Quantity
	// Shortfall is the part of the request no active batch covered.
	Shortfall types.Quantity
}
