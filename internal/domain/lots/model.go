// Package lots manages physical flooring lots: received pallets of one shade and
// grade that are quality-checked, reserved, issued and placed into bins.
package lots

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Status of a lot.
type Status string

const (
	StatusAvailable Status = "available"
	StatusReserved  Status = "reserved"
	StatusPartial   Status = "partial"
	StatusDepleted  Status = "depleted"
	StatusDamaged   Status = "damaged"
	StatusReturned  Status = "returned"
)

// QCStatus is the quality-control outcome.
type QCStatus string

const (
	QCPending QCStatus = "pending"
	QCPassed  QCStatus = "passed"
	QCFailed  QCStatus = "failed"
)

// Lot is a physical lot of one product in one warehouse.
type Lot struct {
	ID          id.ID  `db:"id" json:"id"`
	LotNumber   string `db:"lot_number" json:"lotNumber"`
	Barcode     string `db:"barcode" json:"barcode"`
	ProductID   id.ID  `db:"product_id" json:"productId"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`

	Boxes       types.Quantity `db:"boxes" json:"boxes"`
	Sqft        types.Quantity `db:"sqft" json:"sqft"`
	ReservedQty types.Quantity `db:"reserved_qty" json:"reservedQty"`
	IssuedQty   types.Quantity `db:"issued_qty" json:"issuedQty"`

	Status          Status   `db:"status" json:"status"`
	QCStatus        QCStatus `db:"qc_status" json:"qcStatus"`
	QCNotes         string   `db:"qc_notes" json:"qcNotes,omitempty"`
	MoistureContent *float64 `db:"moisture_content" json:"moistureContent,omitempty"`
	Defects         []string `db:"defects" json:"defects,omitempty"`

	Grade string `db:"grade" json:"grade"`
	Shade string `db:"shade" json:"shade,omitempty"`

	PurchasePrice     types.Money `db:"purchase_price" json:"purchasePrice"`
	LandedCostPerSqft types.Money `db:"landed_cost_per_sqft" json:"landedCostPerSqft"`
	TotalLandedCost   types.Money `db:"total_landed_cost" json:"totalLandedCost"`

	BinCode         *string         `db:"bin_code" json:"binLocation,omitempty"`
	BinID           *id.ID          `db:"bin_id" json:"binId,omitempty"`
	MovementHistory LocationHistory `db:"movement_history" json:"movementHistory"`

	ExpiryDate   *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
	ReceivedDate time.Time  `db:"received_date" json:"receivedDate"`
	GRNID        *id.ID     `db:"grn_id" json:"grnId,omitempty"`

	Specs entity.Attributes `db:"specs" json:"specs,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// AvailableQty is sqft neither reserved nor issued.
func (l *Lot) AvailableQty() types.Quantity {
	return l.Sqft - l.ReservedQty - l.IssuedQty
}

// syncStatus derives the stock status from the sqft counters. Damaged and
// returned lots keep their status.
func (l *Lot) syncStatus() {
	switch {
	case l.Status == StatusDamaged || l.Status == StatusReturned:
	case l.IssuedQty >= l.Sqft:
		l.Status = StatusDepleted
	case l.ReservedQty > 0 && l.AvailableQty() <= 0:
		l.Status = StatusReserved
	case l.ReservedQty > 0 || l.IssuedQty > 0:
		l.Status = StatusPartial
	default:
		l.Status = StatusAvailable
	}
}

// Clone returns a deep copy.
func (l *Lot) Clone() *Lot {
	c := *l
	c.Defects = slices.Clone(l.Defects)
	c.MovementHistory = slices.Clone(l.MovementHistory)
	c.Specs = l.Specs.Clone()
	if l.MoistureContent != nil {
		v := *l.MoistureContent
		c.MoistureContent = &v
	}
	if l.BinCode != nil {
		v := *l.BinCode
		c.BinCode = &v
	}
	if l.BinID != nil {
		v := *l.BinID
		c.BinID = &v
	}
	if l.GRNID != nil {
		v := *l.GRNID
		c.GRNID = &v
	}
	if l.ExpiryDate != nil {
		v := *l.ExpiryDate
		c.ExpiryDate = &v
	}
	return &c
}

// CurrentBin returns the bin code or "".
func (l *Lot) CurrentBin() string {
	if l.BinCode == nil {
		return ""
	}
	return *l.BinCode
}

// LocationChange is one entry of a lot's location trail.
type LocationChange struct {
	From    string    `json:"from,omitempty"`
	To      string    `json:"to"`
	MovedAt time.Time `json:"movedAt"`
	MovedBy string    `json:"movedBy,omitempty"`
}

// LocationHistory is stored as JSONB.
type LocationHistory []LocationChange

// Scan implements sql.Scanner.
func (h *LocationHistory) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for LocationHistory: %T", src)
	}
	if len(raw) == 0 {
		*h = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]LocationChange)(h))
}

// Value implements driver.Valuer.
func (h LocationHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]LocationChange(h))
}

// BinUsage is the lot load of one bin, computed from the lots themselves.
type BinUsage struct {
	Sqft  types.Quantity
	Count int
}

func formatSqft(q types.Quantity) string {
	return strconv.FormatFloat(q.Float64(), 'f', -1, 64)
}
