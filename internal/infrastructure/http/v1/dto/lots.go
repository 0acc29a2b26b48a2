package dto

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/lots"
)

// Lot actions accepted by PUT /lots.
const (
	LotReserve        = "reserve"
	LotRelease        = "release"
	LotIssue          = "issue"
	LotQCPass         = "qc_pass"
	LotQCFail         = "qc_fail"
	LotMarkDamaged    = "mark_damaged"
	LotUpdateLocation = "update_location"
)

// CreateLotRequest is the body of POST /lots.
type CreateLotRequest struct {
	LotNumber         string         `json:"lotNumber" binding:"max=100"`
	Barcode           string         `json:"barcode" binding:"max=100"`
	ProductID         id.ID          `json:"productId" binding:"required"`
	WarehouseID       id.ID          `json:"warehouseId" binding:"required"`
	Boxes             types.Quantity `json:"boxes"`
	Sqft              types.Quantity `json:"sqft"`
	Grade             string         `json:"grade" binding:"max=20"`
	Shade             string         `json:"shade" binding:"max=50"`
	PurchasePrice     types.Money    `json:"purchasePrice"`
	LandedCostPerSqft types.Money    `json:"landedCostPerSqft"`
	MoistureContent   *float64       `json:"moistureContent"`
	ExpiryDate        *time.Time     `json:"expiryDate"`
	BinLocation       string         `json:"binLocation" binding:"max=50"`
	Specs             map[string]any `json:"specs"`
}

// ToDomain converts the body.
func (r *CreateLotRequest) ToDomain() lots.CreateRequest {
	return lots.CreateRequest{
		LotNumber:         r.LotNumber,
		Barcode:           r.Barcode,
		ProductID:         r.ProductID,
		WarehouseID:       r.WarehouseID,
		Boxes:             r.Boxes,
		Sqft:              r.Sqft,
		Grade:             r.Grade,
		Shade:             r.Shade,
		PurchasePrice:     r.PurchasePrice,
		LandedCostPerSqft: r.LandedCostPerSqft,
		MoistureContent:   r.MoistureContent,
		ExpiryDate:        r.ExpiryDate,
		BinCode:           r.BinLocation,
		Specs:             r.Specs,
	}
}

// LotActionRequest is the body of PUT /lots.
type LotActionRequest struct {
	ID              id.ID          `json:"id" binding:"required"`
	Action          string         `json:"action" binding:"required,oneof=reserve release issue qc_pass qc_fail mark_damaged update_location"`
	Quantity        types.Quantity `json:"quantity"`
	MoistureContent *float64       `json:"moistureContent"`
	Defects         []string       `json:"defects"`
	BinLocation     string         `json:"binLocation" binding:"max=50"`
	Notes           string         `json:"notes"`
}

// LotQuery holds the filters of GET /lots.
type LotQuery struct {
	ID          string `form:"id"`
	ProductID   string `form:"productId"`
	WarehouseID string `form:"warehouseId"`
	BinID       string `form:"binId"`
	Status      string `form:"status"`
	QCStatus    string `form:"qcStatus"`
	Shade       string `form:"shade"`
	Grade       string `form:"grade"`
	Search      string `form:"search"`
	PageQuery
}

// ToFilter parses the query.
func (q *LotQuery) ToFilter() (lots.Filter, error) {
	var (
		f   lots.Filter
		err error
	)
	if f.ProductID, err = ParseOptionalID("productId", q.ProductID); err != nil {
		return f, err
	}
	if f.WarehouseID, err = ParseOptionalID("warehouseId", q.WarehouseID); err != nil {
		return f, err
	}
	if f.BinID, err = ParseOptionalID("binId", q.BinID); err != nil {
		return f, err
	}
	f.Status = lots.Status(q.Status)
	f.QCStatus = lots.QCStatus(q.QCStatus)
	f.Shade = q.Shade
	f.Grade = q.Grade
	f.Search = q.Search
	f.Page = q.Page()
	return f, nil
}
