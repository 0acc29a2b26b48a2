// Package report_repo provides the PostgreSQL queries behind the stock
// reports. Rows are aggregated in SQL and scanned with scany's default
// snake_case mapping.
package report_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{txManager: txManager}
}

// BalanceRows implements reports.Repository.
func (r *ReportRepo) BalanceRows(ctx context.Context, filter reports.BalanceSheetFilter) ([]reports.BalanceRow, error) {
	q := balanceRowsQuery(filter)

	var rows []reports.BalanceRow
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &rows, q); err != nil {
		return nil, fmt.Errorf("balance rows: %w", err)
	}
	return rows, nil
}

func balanceRowsQuery(filter reports.BalanceSheetFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(
			"b.warehouse_id",
			"COALESCE(w.code, '') AS warehouse_code",
			"COALESCE(w.name, '') AS warehouse_name",
			"b.product_id",
			"COALESCE(p.code, '') AS product_code",
			"COALESCE(p.name, '') AS product_name",
			"b.unit",
			"b.quantity",
			"b.reserved_qty",
			"b.avg_cost_price",
			"b.reorder_level",
			"b.max_stock",
		).
		From("stock_balances b").
		LeftJoin("cat_warehouses w ON w.id = b.warehouse_id").
		LeftJoin("cat_products p ON p.id = b.product_id").
		OrderBy("warehouse_code", "product_code")
	q = whereIDs(q, "b", filter.WarehouseIDs, filter.ProductIDs)
	if filter.ExcludeZero {
		q = q.Where(squirrel.NotEq{"b.quantity": 0})
	}
	return q
}

// Turnover implements reports.Repository. Movements before FromDate make the
// opening balance; later ones up to ToDate split into receipt and expense.
func (r *ReportRepo) Turnover(ctx context.Context, filter reports.TurnoverFilter) ([]reports.TurnoverRow, error) {
	q := turnoverQuery(filter)

	var rows []reports.TurnoverRow
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &rows, q); err != nil {
		return nil, fmt.Errorf("stock turnover: %w", err)
	}
	for i := range rows {
		rows[i].ClosingBalance = rows[i].OpeningBalance + rows[i].Receipt - rows[i].Expense
	}
	return rows, nil
}

func turnoverQuery(filter reports.TurnoverFilter) squirrel.SelectBuilder {
	q := postgres.Builder().
		Select(
			"m.warehouse_id",
			"COALESCE(w.name, '') AS warehouse_name",
			"m.product_id",
			"COALESCE(p.name, '') AS product_name",
		).
		Column(squirrel.Expr("COALESCE(SUM(m.quantity_change) FILTER (WHERE m.created_at < ?), 0)::bigint AS opening_balance", filter.FromDate)).
		Column(squirrel.Expr("COALESCE(SUM(m.quantity_change) FILTER (WHERE m.created_at >= ? AND m.quantity_change > 0), 0)::bigint AS receipt", filter.FromDate)).
		Column(squirrel.Expr("COALESCE(-SUM(m.quantity_change) FILTER (WHERE m.created_at >= ? AND m.quantity_change <= 0), 0)::bigint AS expense", filter.FromDate)).
		From("stock_movements m").
		LeftJoin("cat_warehouses w ON w.id = m.warehouse_id").
		LeftJoin("cat_products p ON p.id = m.product_id").
		Where(squirrel.LtOrEq{"m.created_at": filter.ToDate}).
		GroupBy("m.warehouse_id", "m.product_id", "w.code", "w.name", "p.code", "p.name").
		OrderBy("w.code", "p.code")
	return whereIDs(q, "m", filter.WarehouseIDs, filter.ProductIDs)
}

func whereIDs(q squirrel.SelectBuilder, alias string, warehouseIDs, productIDs []id.ID) squirrel.SelectBuilder {
	if len(warehouseIDs) > 0 {
		q = q.Where(squirrel.Eq{alias + ".warehouse_id": warehouseIDs})
	}
	if len(productIDs) > 0 {
		q = q.Where(squirrel.Eq{alias + ".product_id": productIDs})
	}
	return q
}
