// Package reservation holds stock for a customer order or quote. An active
// reservation is backed by reserved quantity on the balance until it is
// fulfilled, released, cancelled or expired.
package reservation

import (
	"context"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Status of a reservation.
type Status string

const (
	StatusActive    Status = "active"
	StatusFulfilled Status = "fulfilled"
	StatusReleased  Status = "released"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Reservation holds a quantity of one product in one warehouse.
type Reservation struct {
	entity.Document

	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	RequestedQty types.Quantity `db:"requested_qty" json:"requestedQty"`
	ReservedQty  types.Quantity `db:"reserved_qty" json:"reservedQty"`
	FulfilledQty types.Quantity `db:"fulfilled_qty" json:"fulfilledQty"`
	ReleasedQty  types.Quantity `db:"released_qty" json:"releasedQty"`

	UnitPrice     types.Money `db:"unit_price" json:"unitPrice"`
	ReservedValue types.Money `db:"reserved_value" json:"reservedValue"`

	// Document the stock is held for (quote, order, project).
	RefType      string `db:"ref_type" json:"refType"`
	RefID        string `db:"ref_id" json:"refId,omitempty"`
	RefNumber    string `db:"ref_number" json:"refNumber,omitempty"`
	CustomerName string `db:"customer_name" json:"customerName,omitempty"`

	Status    Status     `db:"status" json:"status"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	ClosedAt  *time.Time `db:"closed_at" json:"closedAt,omitempty"`

	// Stock snapshot at the time of reservation
	StockAtReservation     types.Quantity `db:"stock_at_reservation" json:"stockAtReservation"`
	AvailableAtReservation types.Quantity `db:"available_at_reservation" json:"availableAtReservation"`
}

// IsExpired reports whether an active reservation passed its expiry.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == StatusActive && now.After(r.ExpiresAt)
}

// recalculate refreshes the reserved value.
func (r *Reservation) recalculate() {
	r.ReservedValue = r.ReservedQty.Mul(r.UnitPrice).Round(2)
}

// Validate implements entity.Validatable.
func (r *Reservation) Validate(_ context.Context) error {
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product id is required").WithDetail("field", "productId")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse id is required").WithDetail("field", "warehouseId")
	}
	if !r.RequestedQty.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if r.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").WithDetail("field", "unitPrice")
	}
	return nil
}

// Clone returns a deep copy.
func (r *Reservation) Clone() *Reservation {
	c := *r
	c.History = r.History.Clone()
	return &c
}
