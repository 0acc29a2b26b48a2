// Package ledger provides the stock ledger: the append-only movement log and the
// per product×warehouse balance derived from it.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MovementType is the kind of a stock-affecting event.
type MovementType string

const (
	// Inward
	MovementGoodsReceipt   MovementType = "goods_receipt"
	MovementTransferIn     MovementType = "transfer_in"
	MovementAdjustmentPlus MovementType = "adjustment_plus"
	MovementReturnIn       MovementType = "return_in"

	// Outward
	MovementGoodsIssue      MovementType = "goods_issue"
	MovementTransferOut     MovementType = "transfer_out"
	MovementAdjustmentMinus MovementType = "adjustment_minus"
	MovementDamage          MovementType = "damage"
	MovementReturnOut       MovementType = "return_out"

	// Reservation bookkeeping, quantity is untouched
	MovementReservation MovementType = "reservation"
	MovementRelease     MovementType = "release"
)

// Direction classifies a movement type by its effect on the balance.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionIn
	DirectionOut
	DirectionReserve
	DirectionRelease
)

// AllMovementTypes lists every accepted movement type.
func AllMovementTypes() []MovementType {
	return []MovementType{
		MovementGoodsReceipt, MovementTransferIn, MovementAdjustmentPlus, MovementReturnIn,
		MovementGoodsIssue, MovementTransferOut, MovementAdjustmentMinus, MovementDamage, MovementReturnOut,
		MovementReservation, MovementRelease,
	}
}

// Direction returns the balance effect of t.
func (t MovementType) Direction() Direction {
	switch t {
	case MovementGoodsReceipt, MovementTransferIn, MovementAdjustmentPlus, MovementReturnIn:
		return DirectionIn
	case MovementGoodsIssue, MovementTransferOut, MovementAdjustmentMinus, MovementDamage, MovementReturnOut:
		return DirectionOut
	case MovementReservation:
		return DirectionReserve
	case MovementRelease:
		return DirectionRelease
	}
	return DirectionUnknown
}

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	return t.Direction() != DirectionUnknown
}

// IsInward reports whether t increases the quantity on hand.
func (t MovementType) IsInward() bool { return t.Direction() == DirectionIn }

// IsOutward reports whether t decreases the quantity on hand.
func (t MovementType) IsOutward() bool { return t.Direction() == DirectionOut }

// Defaults applied to a balance created without product-level values.
var (
	DefaultReorderLevel = types.Qty(10)
	DefaultSafetyStock  = types.Qty(5)
	DefaultMaxStock     = types.Qty(1000)
)

// DefaultUnit is the stock unit of a balance whose product has none.
const DefaultUnit = "sqft"

// Balance is the derived stock state of one product in one warehouse.
// Quantity is authoritative; 0 ≤ ReservedQty ≤ Quantity always holds.
type Balance struct {
	ID          id.ID `db:"id" json:"id"`
	ProductID   id.ID `db:"product_id" json:"productId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	ReservedQty types.Quantity `db:"reserved_qty" json:"reservedQty"`

	AvgCostPrice  types.Money `db:"avg_cost_price" json:"avgCostPrice"`
	LastCostPrice types.Money `db:"last_cost_price" json:"lastCostPrice"`

	ReorderLevel types.Quantity `db:"reorder_level" json:"reorderLevel"`
	SafetyStock  types.Quantity `db:"safety_stock" json:"safetyStock"`
	MaxStock     types.Quantity `db:"max_stock" json:"maxStock"`
	Unit         string         `db:"unit" json:"unit"`

	LastMovementAt *time.Time `db:"last_movement_at" json:"lastMovementAt,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBalance creates an empty balance seeded from product defaults.
func NewBalance(productID, warehouseID id.ID, info *ProductInfo, now time.Time) *Balance {
	b := &Balance{
		ID:           id.New(),
		ProductID:    productID,
		WarehouseID:  warehouseID,
		ReorderLevel: DefaultReorderLevel,
		SafetyStock:  DefaultSafetyStock,
		MaxStock:     DefaultMaxStock,
		Unit:         DefaultUnit,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if info != nil {
		b.AvgCostPrice = info.CostPrice
		b.LastCostPrice = info.CostPrice
		if info.ReorderLevel.IsPositive() {
			b.ReorderLevel = info.ReorderLevel
		}
		if info.SafetyStock.IsPositive() {
			b.SafetyStock = info.SafetyStock
		}
		if info.MaxStock.IsPositive() {
			b.MaxStock = info.MaxStock
		}
		if info.Unit != "" {
			b.Unit = info.Unit
		}
	}
	return b
}

// AvailableQty is the quantity not held by reservations.
func (b *Balance) AvailableQty() types.Quantity {
	return b.Quantity - b.ReservedQty
}

// MarshalJSON adds the derived availableQty.
func (b Balance) MarshalJSON() ([]byte, error) {
	type plain Balance
	return json.Marshal(struct {
		plain
		AvailableQty types.Quantity `json:"availableQty"`
	}{plain(b), b.AvailableQty()})
}

// StockValue is quantity × average cost.
func (b *Balance) StockValue() types.Money {
	return b.Quantity.Mul(b.AvgCostPrice)
}

// Movement is an immutable record of one stock-affecting event.
type Movement struct {
	ID          id.ID        `db:"id" json:"id"`
	Number      string       `db:"movement_number" json:"movementNumber"`
	Type        MovementType `db:"movement_type" json:"movementType"`
	ProductID   id.ID        `db:"product_id" json:"productId"`
	WarehouseID id.ID        `db:"warehouse_id" json:"warehouseId"`

	// Quantity is the positive magnitude; QuantityChange is the signed effect on
	// the quantity on hand (zero for reservation and release).
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	QuantityChange types.Quantity `db:"quantity_change" json:"quantityChange"`

	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	BatchNumber *string `db:"batch_number" json:"batchNumber,omitempty"`
	LotNumber   *string `db:"lot_number" json:"lotNumber,omitempty"`

	ReferenceType   string `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID     *id.ID `db:"reference_id" json:"referenceId,omitempty"`
	ReferenceNumber string `db:"reference_number" json:"referenceNumber,omitempty"`

	StockBefore    types.Quantity `db:"stock_before" json:"stockBefore"`
	StockAfter     types.Quantity `db:"stock_after" json:"stockAfter"`
	ReservedBefore types.Quantity `db:"reserved_before" json:"reservedBefore"`
	ReservedAfter  types.Quantity `db:"reserved_after" json:"reservedAfter"`

	IdempotencyKey *string `db:"idempotency_key" json:"idempotencyKey,omitempty"`
	RequestHash    string  `db:"request_hash" json:"-"`

	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
}

// Clone returns a copy that shares no pointers with m.
func (m *Movement) Clone() *Movement {
	c := *m
	c.BatchNumber = clonePtr(m.BatchNumber)
	c.LotNumber = clonePtr(m.LotNumber)
	c.ReferenceID = clonePtr(m.ReferenceID)
	c.IdempotencyKey = clonePtr(m.IdempotencyKey)
	return &c
}

// Reference links a movement to the document that caused it.
type Reference struct {
	Type   string
	ID     *id.ID
	Number string
}

// Reference types written by the workflows.
const (
	RefGoodsReceipt = "grn"
	RefCycleCount   = "cycle_count"
	RefTransfer     = "transfer"
	RefReservation  = "reservation"
	RefLot          = "lot"
	RefManual       = "manual"
)

// BatchInfo carries batch identifiers of an inward movement.
type BatchInfo struct {
	BatchNumber       string
	LotNumber         string
	ManufacturingDate *time.Time
	ExpiryDate        *time.Time
	VendorID          *id.ID
}

// Key returns the batch key: the batch number, or the lot number when absent.
func (b *BatchInfo) Key() string {
	if b == nil {
		return ""
	}
	if b.BatchNumber != "" {
		return b.BatchNumber
	}
	return b.LotNumber
}

// RecordRequest is the input of Service.RecordMovement.
type RecordRequest struct {
	Type        MovementType
	ProductID   id.ID
	WarehouseID id.ID
	Quantity    types.Quantity

	// UnitCost is optional; inward movements without it are valued at the current average.
	UnitCost *types.Money

	Batch     *BatchInfo
	Reference Reference

	// IdempotencyKey makes the request safe to retry.
	IdempotencyKey string

	Notes string
}

// Validate checks the request without touching storage.
func (r *RecordRequest) Validate(_ context.Context) error {
	if !r.Type.IsValid() {
		return apperror.NewValidation("invalid movement type").
			WithDetail("field", "movementType").
			WithDetail("value", string(r.Type))
	}
	if id.IsNil(r.ProductID) {
		return apperror.NewValidation("product id is required").WithDetail("field", "productId")
	}
	if id.IsNil(r.WarehouseID) {
		return apperror.NewValidation("warehouse id is required").WithDetail("field", "warehouseId")
	}
	if !r.Quantity.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	if r.UnitCost != nil && r.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").WithDetail("field", "unitCost")
	}
	if len(r.IdempotencyKey) > 255 {
		return apperror.NewValidation("idempotency key is too long").WithDetail("field", "idempotencyKey")
	}
	return nil
}

// Fingerprint hashes the fields that define the request, so a retried key can be
// matched against the original payload.
func (r *RecordRequest) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%d|", r.Type, r.ProductID, r.WarehouseID, r.Quantity.Int64Scaled())
	if r.UnitCost != nil {
		sb.WriteString(r.UnitCost.String())
	}
	sb.WriteByte('|')
	if r.Batch != nil {
		fmt.Fprintf(&sb, "%s|%s|", r.Batch.BatchNumber, r.Batch.LotNumber)
	} else {
		sb.WriteString("||")
	}
	sb.WriteString(r.Reference.Type)
	sb.WriteByte('|')
	if r.Reference.ID != nil {
		sb.WriteString(r.Reference.ID.String())
	}
	sb.WriteByte('|')
	sb.WriteString(r.Reference.Number)
	sb.WriteByte('|')
	sb.WriteString(r.Notes)

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Result is the outcome of a recorded movement.
type Result struct {
	Movement *Movement
	Balance  *Balance

	// BatchShortfall is the outward quantity no active batch could cover.
	BatchShortfall types.Quantity

	// Replayed is true when the movement was returned for a repeated idempotency key.
	Replayed bool
}

// ProductInfo is the catalog data the ledger needs about a product.
type ProductInfo struct {
	ID           id.ID
	Code         string
	Name         string
	Unit         string
	CostPrice    types.Money
	ReorderLevel types.Quantity
	SafetyStock  types.Quantity
	MaxStock     types.Quantity
	TrackBatch   bool
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
