package memory

import (
	"cmp"
	"context"
	"slices"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reports"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct{ s *Store }

// NewReportRepo creates a report repository.
func NewReportRepo(s *Store) *ReportRepo { return &ReportRepo{s: s} }

var _ reports.Repository = (*ReportRepo)(nil)

// BalanceRows implements reports.Repository.
func (r *ReportRepo) BalanceRows(ctx context.Context, filter reports.BalanceSheetFilter) ([]reports.BalanceRow, error) {
	var rows []reports.BalanceRow
	r.s.read(ctx, func() {
		balances := r.s.balances.scan(func(b *ledger.Balance) bool {
			return within(filter.WarehouseIDs, b.WarehouseID) && within(filter.ProductIDs, b.ProductID) &&
				(!filter.ExcludeZero || b.Quantity != 0)
		})
		for _, b := range balances {
			p, w := r.names(b.ProductID, b.WarehouseID)
			rows = append(rows, reports.BalanceRow{
				WarehouseID:   b.WarehouseID,
				WarehouseCode: w.Code,
				WarehouseName: w.Name,
				ProductID:     b.ProductID,
				ProductCode:   p.Code,
				ProductName:   p.Name,
				Unit:          b.Unit,
				Quantity:      b.Quantity,
				ReservedQty:   b.ReservedQty,
				AvgCostPrice:  b.AvgCostPrice,
				ReorderLevel:  b.ReorderLevel,
				MaxStock:      b.MaxStock,
			})
		}
	})
	slices.SortStableFunc(rows, func(a, b reports.BalanceRow) int {
		return cmp.Or(cmp.Compare(a.WarehouseCode, b.WarehouseCode), cmp.Compare(a.ProductCode, b.ProductCode))
	})
	return rows, nil
}

// Turnover implements reports.Repository.
func (r *ReportRepo) Turnover(ctx context.Context, filter reports.TurnoverFilter) ([]reports.TurnoverRow, error) {
	type sortable struct {
		row  reports.TurnoverRow
		code string
	}
	var out []sortable
	r.s.read(ctx, func() {
		acc := make(map[balanceKey]*reports.TurnoverRow)
		var keys []balanceKey
		for _, m := range r.s.movements.scan(nil) {
			if !within(filter.WarehouseIDs, m.WarehouseID) || !within(filter.ProductIDs, m.ProductID) {
				continue
			}
			if m.CreatedAt.After(filter.ToDate) {
				continue
			}
			key := balanceKey{m.ProductID, m.WarehouseID}
			row, ok := acc[key]
			if !ok {
				row = &reports.TurnoverRow{WarehouseID: m.WarehouseID, ProductID: m.ProductID}
				acc[key] = row
				keys = append(keys, key)
			}
			switch {
			case m.CreatedAt.Before(filter.FromDate):
				row.OpeningBalance += m.QuantityChange
			case m.QuantityChange > 0:
				row.Receipt += m.QuantityChange
			default:
				row.Expense -= m.QuantityChange
			}
		}
		for _, key := range keys {
			row := acc[key]
			row.ClosingBalance = row.OpeningBalance + row.Receipt - row.Expense
			p, w := r.names(key.productID, key.warehouseID)
			row.ProductName, row.WarehouseName = p.Name, w.Name
			out = append(out, sortable{row: *row, code: w.Code + "\x00" + p.Code})
		}
	})
	slices.SortStableFunc(out, func(a, b sortable) int { return cmp.Compare(a.code, b.code) })

	rows := make([]reports.TurnoverRow, len(out))
	for i, s := range out {
		rows[i] = s.row
	}
	return rows, nil
}

// names resolves catalog data; missing entries come back empty.
func (r *ReportRepo) names(productID, warehouseID id.ID) (*product.Product, *warehouse.Warehouse) {
	p, ok := r.s.products.get(productID)
	if !ok {
		p = &product.Product{}
	}
	w, ok := r.s.warehouses.get(warehouseID)
	if !ok {
		w = &warehouse.Warehouse{}
	}
	return p, w
}

func within(ids []id.ID, v id.ID) bool {
	return len(ids) == 0 || slices.Contains(ids, v)
}
