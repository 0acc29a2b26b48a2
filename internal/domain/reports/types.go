// Package reports provides the stock balance sheet, the stock turnover report
// and stock alerts.
package reports

import (
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// --- Balance Sheet ---

// BalanceSheetFilter defines the filter of the balance sheet.
type BalanceSheetFilter struct {
	WarehouseIDs []id.ID
	ProductIDs   []id.ID

	// Exclude zero balances
	ExcludeZero bool
}

// BalanceRow is one balance joined with its product and warehouse.
type BalanceRow struct {
	WarehouseID   id.ID          `json:"warehouseId"`
	WarehouseCode string         `json:"warehouseCode"`
	WarehouseName string         `json:"warehouseName"`
	ProductID     id.ID          `json:"productId"`
	ProductCode   string         `json:"productCode"`
	ProductName   string         `json:"productName"`
	Unit          string         `json:"unit"`
	Quantity      types.Quantity `json:"quantity"`
	ReservedQty   types.Quantity `json:"reservedQty"`
	AvailableQty  types.Quantity `json:"availableQty"`
	AvgCostPrice  types.Money    `json:"avgCostPrice"`
	ReorderLevel  types.Quantity `json:"reorderLevel"`
	MaxStock      types.Quantity `json:"maxStock"`

	// Value is quantity × average cost.
	Value types.Money `json:"value"`
}

// BalanceSheet is the valued stock position.
type BalanceSheet struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Rows        []BalanceRow `json:"rows"`

	TotalQuantity  types.Quantity `json:"totalQuantity"`
	TotalReserved  types.Quantity `json:"totalReserved"`
	TotalAvailable types.Quantity `json:"totalAvailable"`
	TotalValue     types.Money    `json:"totalValue"`
}

// --- Stock Turnover Report ---

// TurnoverFilter defines the filter of the turnover report.
type TurnoverFilter struct {
	// Period (required)
	FromDate time.Time
	ToDate   time.Time

	WarehouseIDs []id.ID
	ProductIDs   []id.ID

	// Include rows without movements in the period
	IncludeZero bool
}

// TurnoverRow is the opening, inward, outward and closing quantity of one
// balance over a period.
type TurnoverRow struct {
	WarehouseID    id.ID          `json:"warehouseId"`
	WarehouseName  string         `json:"warehouseName"`
	ProductID      id.ID          `json:"productId"`
	ProductName    string         `json:"productName"`
	OpeningBalance types.Quantity `json:"openingBalance"`
	Receipt        types.Quantity `json:"receipt"`
	Expense        types.Quantity `json:"expense"`
	ClosingBalance types.Quantity `json:"closingBalance"`
}

// TurnoverReport represents the full turnover report.
type TurnoverReport struct {
	FromDate time.Time     `json:"fromDate"`
	ToDate   time.Time     `json:"toDate"`
	Rows     []TurnoverRow `json:"rows"`

	// Summary totals
	TotalOpening types.Quantity `json:"totalOpening"`
	TotalReceipt types.Quantity `json:"totalReceipt"`
	TotalExpense types.Quantity `json:"totalExpense"`
	TotalClosing types.Quantity `json:"totalClosing"`
}

// --- Alerts ---

// AlertType names a stock condition.
type AlertType string

const (
	AlertOutOfStock AlertType = "out_of_stock"
	AlertLowStock   AlertType = "low_stock"
	AlertOverstock  AlertType = "overstock"
	AlertExpired    AlertType = "expired"
	AlertExpiring   AlertType = "expiring"
)

// Severity of an alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ExpiryHorizon is how far ahead batches are reported as expiring.
const ExpiryHorizon = 30 * 24 * time.Hour

// Alert is one stock condition needing attention.
type Alert struct {
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	ProductID   id.ID     `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	WarehouseID id.ID     `json:"warehouseId"`
	Message     string    `json:"message"`

	Quantity     types.Quantity `json:"quantity"`
	AvailableQty types.Quantity `json:"availableQty"`
	ReorderLevel types.Quantity `json:"reorderLevel,omitempty"`
	MaxStock     types.Quantity `json:"maxStock,omitempty"`

	// SuggestedOrder is set on low stock: max(maxStock − quantity, 0).
	SuggestedOrder types.Quantity `json:"suggestedOrder,omitempty"`

	BatchNumber string     `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

// AlertFilter narrows an alert scan.
type AlertFilter struct {
	WarehouseID *id.ID
	Types       []AlertType
}

// AlertReport is the result of an alert scan.
type AlertReport struct {
	Alerts     []Alert           `json:"alerts"`
	Counts     map[AlertType]int `json:"counts"`
	BySeverity map[Severity]int  `json:"bySeverity"`
}
