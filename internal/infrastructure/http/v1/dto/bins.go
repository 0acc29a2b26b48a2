package dto

import (
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/bins"
)

// Bin actions accepted by PUT /bin-locations.
const (
	BinAssignLot       = "assign_lot"
	BinMoveLot         = "move_lot"
	BinBlock           = "block"
	BinUnblock         = "unblock"
	BinSuggestLocation = "suggest_location"
	BinVerifyOccupancy = "verify_occupancy"
	BinUpdate          = "update"
)

// BinActions lists every valid bin action.
var BinActions = []string{
	BinAssignLot, BinMoveLot, BinBlock, BinUnblock, BinSuggestLocation, BinVerifyOccupancy, BinUpdate,
}

// CreateBinRequest is the body of POST /bin-locations. With bulkCreate set
// the zone/rack/shelf/bin grid fields are used instead of a single bin.
type CreateBinRequest struct {
	BulkCreate bool `json:"bulkCreate"`

	WarehouseID     id.ID            `json:"warehouseId" binding:"required"`
	Code            string           `json:"code" binding:"max=50"`
	Zone            string           `json:"zone" binding:"max=20"`
	Rack            string           `json:"rack" binding:"max=20"`
	Shelf           string           `json:"shelf" binding:"max=20"`
	Bin             string           `json:"bin" binding:"max=20"`
	Type            bins.Type        `json:"type"`
	Capacity        types.Quantity   `json:"capacity"`
	Dimensions      *bins.Dimensions `json:"dimensions"`
	MaxWeight       float64          `json:"maxWeight"`
	AllowedProducts []id.ID          `json:"allowedProducts"`
	Notes           string           `json:"notes"`

	Zones          []string       `json:"zones"`
	RacksPerZone   int            `json:"racksPerZone" binding:"min=0,max=100"`
	ShelvesPerRack int            `json:"shelvesPerRack" binding:"min=0,max=50"`
	BinsPerShelf   int            `json:"binsPerShelf" binding:"min=0,max=50"`
	CapacityPerBin types.Quantity `json:"capacityPerBin"`
}

// ToDomain converts a single-bin body.
func (r *CreateBinRequest) ToDomain() bins.CreateRequest {
	return bins.CreateRequest{
		WarehouseID:     r.WarehouseID,
		Code:            r.Code,
		Zone:            r.Zone,
		Rack:            r.Rack,
		Shelf:           r.Shelf,
		Bin:             r.Bin,
		Type:            r.Type,
		Capacity:        r.Capacity,
		Dimensions:      r.Dimensions,
		MaxWeight:       r.MaxWeight,
		AllowedProducts: r.AllowedProducts,
		Notes:           r.Notes,
	}
}

// ToBulk converts a bulk body.
func (r *CreateBinRequest) ToBulk() bins.BulkCreateRequest {
	return bins.BulkCreateRequest{
		WarehouseID:     r.WarehouseID,
		Zones:           r.Zones,
		RacksPerZone:    r.RacksPerZone,
		ShelvesPerRack:  r.ShelvesPerRack,
		BinsPerShelf:    r.BinsPerShelf,
		CapacityPerBin:  r.CapacityPerBin,
		Type:            r.Type,
		Dimensions:      r.Dimensions,
		MaxWeight:       r.MaxWeight,
		AllowedProducts: r.AllowedProducts,
	}
}

// BinActionRequest is the body of PUT /bin-locations. The id is the bin for
// block, unblock and update; lot actions address the lot and bin codes.
type BinActionRequest struct {
	ID     *id.ID `json:"id"`
	Action string `json:"action" binding:"required,bin_action"`

	LotID   *id.ID `json:"lotId"`
	BinCode string `json:"binCode"`
	FromBin string `json:"fromBin"`
	ToBin   string `json:"toBin"`
	Reason  string `json:"reason"`

	ProductID    *id.ID         `json:"productId"`
	SqftRequired types.Quantity `json:"sqftRequired"`
	WarehouseID  *id.ID         `json:"warehouseId"`
	Repair       bool           `json:"repair"`

	Capacity        *types.Quantity  `json:"capacity"`
	Type            *bins.Type       `json:"type"`
	Dimensions      *bins.Dimensions `json:"dimensions"`
	MaxWeight       *float64         `json:"maxWeight"`
	AllowedProducts []id.ID          `json:"allowedProducts"`
	Notes           *string          `json:"notes"`
}

// ToUpdate converts the update fields.
func (r *BinActionRequest) ToUpdate() bins.UpdateRequest {
	return bins.UpdateRequest{
		Capacity:        r.Capacity,
		Type:            r.Type,
		Dimensions:      r.Dimensions,
		MaxWeight:       r.MaxWeight,
		AllowedProducts: r.AllowedProducts,
		Notes:           r.Notes,
	}
}

// BinQuery holds the filters of GET /bin-locations.
type BinQuery struct {
	ID          string `form:"id"`
	WarehouseID string `form:"warehouseId"`
	Zone        string `form:"zone"`
	Rack        string `form:"rack"`
	Available   bool   `form:"available"`
	Hierarchy   bool   `form:"hierarchy"`
}

// ToFilter parses the query.
func (q *BinQuery) ToFilter() (bins.Filter, error) {
	warehouseID, err := ParseOptionalID("warehouseId", q.WarehouseID)
	if err != nil {
		return bins.Filter{}, err
	}
	return bins.Filter{
		WarehouseID:   warehouseID,
		Zone:          q.Zone,
		Rack:          q.Rack,
		AvailableOnly: q.Available,
	}, nil
}
