package report_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/reports"
)

func TestBalanceRowsQuery(t *testing.T) {
	wh := id.New()
	sql, args, err := balanceRowsQuery(reports.BalanceSheetFilter{
		WarehouseIDs: []id.ID{wh},
		ExcludeZero:  true,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FROM stock_balances b LEFT JOIN cat_warehouses w")
	assert.Contains(t, sql, "WHERE b.warehouse_id IN ($1) AND b.quantity <> $2")
	assert.Contains(t, sql, "ORDER BY warehouse_code, product_code")
	assert.Equal(t, []any{wh, 0}, args)
}

func TestTurnoverQuery_NumbersPlaceholdersAcrossColumns(t *testing.T) {
	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	sql, args, err := turnoverQuery(reports.TurnoverFilter{FromDate: from, ToDate: to}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "FILTER (WHERE m.created_at < $1)")
	assert.Contains(t, sql, "FILTER (WHERE m.created_at >= $2 AND m.quantity_change > 0)")
	assert.Contains(t, sql, "WHERE m.created_at <= $4")
	assert.Equal(t, []any{from, from, from, to}, args)
}
