// Package cycle_count provides the cycle count workflow: a frozen snapshot of
// the balances of a warehouse, physically counted, approved and applied to
// the ledger as adjustments.
package cycle_count

import (
	"context"
	"slices"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Status represents the status of a cycle count.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusInProgress      Status = "in_progress"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// CountType is the scope of a count.
type CountType string

const (
	CountFull    CountType = "full"
	CountPartial CountType = "partial"
	CountABC     CountType = "abc"
)

// IsValid reports whether t is a known count type.
func (t CountType) IsValid() bool {
	switch t {
	case CountFull, CountPartial, CountABC:
		return true
	}
	return false
}

// CycleCount is a cycle count document.
type CycleCount struct {
	entity.Document

	WarehouseID id.ID     `db:"warehouse_id" json:"warehouseId"`
	CountType   CountType `db:"count_type" json:"countType"`
	Status      Status    `db:"status" json:"status"`

	StartedAt   *time.Time `db:"started_at" json:"startedAt,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	ApprovedBy  string     `db:"approved_by" json:"approvedBy,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	// Totals (calculated from items)
	TotalItems         int            `db:"total_items" json:"totalItems"`
	CountedItems       int            `db:"counted_items" json:"countedItems"`
	TotalSystemQty     types.Quantity `db:"total_system_qty" json:"totalSystemQty"`
	TotalCountedQty    types.Quantity `db:"total_counted_qty" json:"totalCountedQty"`
	TotalVariance      types.Quantity `db:"total_variance" json:"totalVariance"`
	TotalVarianceValue types.Money    `db:"total_variance_value" json:"totalVarianceValue"`

	Items []Item `db:"-" json:"items"`
}

// Item is one counted product.
type Item struct {
	LineNo    int   `db:"line_no" json:"lineNo"`
	ProductID id.ID `db:"product_id" json:"productId"`

	// SystemQuantity and AvgCostPrice are frozen at creation.
	SystemQuantity  types.Quantity  `db:"system_quantity" json:"systemQuantity"`
	CountedQuantity *types.Quantity `db:"counted_quantity" json:"countedQuantity"`
	Variance        types.Quantity  `db:"variance" json:"variance"`
	VarianceValue   types.Money     `db:"variance_value" json:"varianceValue"`
	AvgCostPrice    types.Money     `db:"avg_cost_price" json:"avgCostPrice"`

	CountedAt *time.Time `db:"counted_at" json:"countedAt,omitempty"`
	CountedBy string     `db:"counted_by" json:"countedBy,omitempty"`
	Notes     string     `db:"notes" json:"notes,omitempty"`

	Applied           bool           `db:"applied" json:"applied"`
	AppliedMovementID *id.ID         `db:"applied_movement_id" json:"appliedMovementId,omitempty"`
	SnapshotDrift     types.Quantity `db:"snapshot_drift" json:"snapshotDrift"`
}

// Counted reports whether the item has a counted quantity.
func (it *Item) Counted() bool {
	return it.CountedQuantity != nil
}

// NewCycleCount creates a draft cycle count.
func NewCycleCount(warehouseID id.ID, countType CountType) *CycleCount {
	if countType == "" {
		countType = CountFull
	}
	return &CycleCount{
		Document:    entity.NewDocument(),
		WarehouseID: warehouseID,
		CountType:   countType,
		Status:      StatusDraft,
		Items:       make([]Item, 0),
	}
}

// AddItem snapshots one balance.
func (c *CycleCount) AddItem(productID id.ID, systemQty types.Quantity, avgCost types.Money) {
	c.Items = append(c.Items, Item{
		LineNo:         len(c.Items) + 1,
		ProductID:      productID,
		SystemQuantity: systemQty,
		AvgCostPrice:   avgCost,
		VarianceValue:  types.Zero(),
	})
	c.Recalculate()
}

// SetCounted records the counted quantity of the item for productID. It
// returns false when the product is not part of the count.
func (c *CycleCount) SetCounted(productID id.ID, counted types.Quantity, countedBy, notes string, at time.Time) bool {
	i := slices.IndexFunc(c.Items, func(it Item) bool { return it.ProductID == productID })
	if i < 0 {
		return false
	}
	it := &c.Items[i]
	it.CountedQuantity = &counted
	it.Variance = counted - it.SystemQuantity
	it.VarianceValue = it.Variance.Mul(it.AvgCostPrice).Round(2)
	it.CountedAt = &at
	it.CountedBy = countedBy
	if notes != "" {
		it.Notes = notes
	}
	c.Recalculate()
	return true
}

// Uncounted returns how many items still lack a count.
func (c *CycleCount) Uncounted() int {
	n := 0
	for i := range c.Items {
		if !c.Items[i].Counted() {
			n++
		}
	}
	return n
}

// AllApplied reports whether every item was applied to the ledger.
func (c *CycleCount) AllApplied() bool {
	for i := range c.Items {
		if !c.Items[i].Applied {
			return false
		}
	}
	return true
}

// Recalculate updates the totals from the items.
func (c *CycleCount) Recalculate() {
	c.TotalItems = len(c.Items)
	c.CountedItems = 0
	c.TotalSystemQty = 0
	c.TotalCountedQty = 0
	c.TotalVariance = 0
	c.TotalVarianceValue = types.Zero()

	for _, it := range c.Items {
		c.TotalSystemQty += it.SystemQuantity
		if it.Counted() {
			c.CountedItems++
			c.TotalCountedQty += *it.CountedQuantity
			c.TotalVariance += it.Variance
			c.TotalVarianceValue = c.TotalVarianceValue.Add(it.VarianceValue)
		}
	}
}

// Validate implements entity.Validatable.
func (c *CycleCount) Validate(_ context.Context) error {
	if id.IsNil(c.WarehouseID) {
		return apperror.NewValidation("warehouse is required").
			WithDetail("field", "warehouseId")
	}
	if !c.CountType.IsValid() {
		return apperror.NewValidation("invalid count type").
			WithDetail("field", "countType").
			WithDetail("value", string(c.CountType))
	}
	return nil
}

// Clone returns a deep copy.
func (c *CycleCount) Clone() *CycleCount {
	cp := *c
	cp.History = c.History.Clone()
	cp.Items = make([]Item, len(c.Items))
	for i, it := range c.Items {
		if it.CountedQuantity != nil {
			q := *it.CountedQuantity
			it.CountedQuantity = &q
		}
		cp.Items[i] = it
	}
	return &cp
}
