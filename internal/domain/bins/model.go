// Package bins manages the warehouse → zone → rack → shelf → bin hierarchy,
// the occupancy of every bin and the placement of lots.
package bins

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Type of storage a bin offers.
type Type string

const (
	TypePallet Type = "pallet"
	TypeShelf  Type = "shelf"
	TypeFloor  Type = "floor"
	TypeBulk   Type = "bulk"
)

// Status of a bin.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBlocked   Status = "blocked"
)

// Defaults of a newly created bin.
var (
	DefaultCapacity   = types.Qty(500)
	DefaultDimensions = Dimensions{Length: 120, Width: 100, Height: 150}
)

// DefaultMaxWeight is in kilograms.
const DefaultMaxWeight = 1000.0

// Bin is one addressable storage location. Occupancy is the sum of the sqft of
// the lots assigned to it, maintained on every assignment.
type Bin struct {
	ID          id.ID  `db:"id" json:"id"`
	WarehouseID id.ID  `db:"warehouse_id" json:"warehouseId"`
	Code        string `db:"code" json:"code"`
	Zone        string `db:"zone" json:"zone"`
	Rack        string `db:"rack" json:"rack"`
	Shelf       string `db:"shelf" json:"shelf"`
	Bin         string `db:"bin" json:"bin"`
	Type        Type   `db:"type" json:"type"`

	Capacity  types.Quantity `db:"capacity" json:"capacity"`
	Occupancy types.Quantity `db:"occupancy" json:"currentOccupancy"`
	LotCount  int            `db:"lot_count" json:"lotCount"`

	Dimensions      Dimensions `db:"dimensions" json:"dimensions"`
	MaxWeight       float64    `db:"max_weight" json:"maxWeight"`
	AllowedProducts []id.ID    `db:"allowed_products" json:"allowedProducts"`

	Status        Status `db:"status" json:"status"`
	BlockedReason string `db:"blocked_reason" json:"blockedReason,omitempty"`
	Notes         string `db:"notes" json:"notes,omitempty"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// Clone returns a deep copy.
func (b *Bin) Clone() *Bin {
	c := *b
	c.AllowedProducts = slices.Clone(b.AllowedProducts)
	return &c
}

// AvailableSpace is capacity minus occupancy, never negative.
func (b *Bin) AvailableSpace() types.Quantity {
	return types.MaxQuantity(b.Capacity-b.Occupancy, 0)
}

// OccupancyPercent is occupancy as a rounded percentage of capacity.
func (b *Bin) OccupancyPercent() int {
	if b.Capacity <= 0 {
		return 0
	}
	return int((int64(b.Occupancy)*100 + int64(b.Capacity)/2) / int64(b.Capacity))
}

// Allows reports whether productID may be stored here. An empty list allows all.
func (b *Bin) Allows(productID id.ID) bool {
	return len(b.AllowedProducts) == 0 || slices.Contains(b.AllowedProducts, productID)
}

// FormatCode renders the Z-RR-S-B bin code.
func FormatCode(zone, rack, shelf, bin string) string {
	return fmt.Sprintf("%s-%s-%s-%s", zone, rack, shelf, bin)
}

// Dimensions of a bin in centimetres, stored as JSONB.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scan implements sql.Scanner.
func (d *Dimensions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Dimensions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Dimensions: %T", src)
	}
	return json.Unmarshal(raw, d)
}

// Value implements driver.Valuer.
func (d Dimensions) Value() (driver.Value, error) {
	return json.Marshal(d)
}
