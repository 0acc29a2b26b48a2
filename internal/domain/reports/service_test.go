package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reports"
)

type fixture struct {
	env       *apptest.Env
	warehouse id.ID
	low       id.ID
	over      id.ID
	empty     id.ID
	fresh     id.ID
	stale     id.ID
}

func levels(reorder, max int64) func(*product.Product) {
	return func(p *product.Product) {
		p.ReorderLevel = types.Qty(reorder)
		p.MaxStock = types.Qty(max)
	}
}

// newFixture stocks one warehouse with a balance for every alert kind.
func newFixture(t *testing.T) *fixture {
	env := apptest.New(t)
	ctx := context.Background()
	f := &fixture{
		env:       env,
		warehouse: env.Warehouse(t, "MAIN"),
		low:       env.Product(t, "A-LOW", levels(20, 100)),
		over:      env.Product(t, "B-OVER", levels(10, 100)),
		empty:     env.Product(t, "C-EMPTY"),
		fresh:     env.Product(t, "D-FRESH"),
		stale:     env.Product(t, "E-STALE"),
	}
	env.Receive(t, f.low, f.warehouse, 15, "10")
	env.Receive(t, f.over, f.warehouse, 150, "2")
	env.Receive(t, f.empty, f.warehouse, 5, "3")
	_, err := env.Ledger.RecordMovement(ctx, ledger.RecordRequest{
		Type:        ledger.MovementGoodsIssue,
		ProductID:   f.empty,
		WarehouseID: f.warehouse,
		Quantity:    types.Qty(5),
	})
	require.NoError(t, err)

	f.receiveBatch(t, f.fresh, 50, "4", "D-1", env.Now.Add(20*24*time.Hour))
	f.receiveBatch(t, f.stale, 20, "1", "E-1", env.Now.Add(5*24*time.Hour))
	return f
}

func (f *fixture) receiveBatch(t *testing.T, productID id.ID, qty int64, cost, batch string, expiry time.Time) {
	unitCost := types.MustMoney(cost)
	_, err := f.env.Ledger.RecordMovement(context.Background(), ledger.RecordRequest{
		Type:        ledger.MovementGoodsReceipt,
		ProductID:   productID,
		WarehouseID: f.warehouse,
		Quantity:    types.Qty(qty),
		UnitCost:    &unitCost,
		Batch:       &ledger.BatchInfo{BatchNumber: batch, ExpiryDate: &expiry},
	})
	require.NoError(t, err)
}

func find(alerts []reports.Alert, productID id.ID, typ reports.AlertType) (reports.Alert, bool) {
	for _, a := range alerts {
		if a.ProductID == productID && a.Type == typ {
			return a, true
		}
	}
	return reports.Alert{}, false
}

func TestBalanceSheet(t *testing.T) {
	f := newFixture(t)

	sheet, err := f.env.Reports.BalanceSheet(context.Background(), reports.BalanceSheetFilter{ExcludeZero: true})
	require.NoError(t, err)

	require.Len(t, sheet.Rows, 4)
	assert.Equal(t, "A-LOW", sheet.Rows[0].ProductCode)
	assert.Equal(t, "MAIN", sheet.Rows[0].WarehouseCode)
	assert.True(t, types.MustMoney("150").Equal(sheet.Rows[0].Value))
	assert.Equal(t, types.Qty(235), sheet.TotalQuantity)
	assert.True(t, types.MustMoney("670").Equal(sheet.TotalValue), "total = %s", sheet.TotalValue)

	all, err := f.env.Reports.BalanceSheet(context.Background(), reports.BalanceSheetFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Rows, 5)
}

func TestAlerts(t *testing.T) {
	f := newFixture(t)
	f.env.Now = f.env.Now.Add(7 * 24 * time.Hour)

	report, err := f.env.Reports.Alerts(context.Background(), reports.AlertFilter{WarehouseID: &f.warehouse})
	require.NoError(t, err)

	require.Len(t, report.Alerts, 5)
	assert.Equal(t, 2, report.BySeverity[reports.SeverityCritical])
	assert.Equal(t, 2, report.BySeverity[reports.SeverityWarning])
	assert.Equal(t, 1, report.BySeverity[reports.SeverityInfo])
	assert.Equal(t, reports.SeverityCritical, report.Alerts[0].Severity)
	assert.Equal(t, reports.SeverityInfo, report.Alerts[4].Severity)

	_, ok := find(report.Alerts, f.empty, reports.AlertOutOfStock)
	assert.True(t, ok)

	low, ok := find(report.Alerts, f.low, reports.AlertLowStock)
	require.True(t, ok)
	assert.Equal(t, types.Qty(85), low.SuggestedOrder)

	_, ok = find(report.Alerts, f.over, reports.AlertOverstock)
	assert.True(t, ok)

	stale, ok := find(report.Alerts, f.stale, reports.AlertExpired)
	require.True(t, ok)
	assert.Equal(t, "E-1", stale.BatchNumber)
	assert.Equal(t, "Product E-STALE", stale.ProductName)

	_, ok = find(report.Alerts, f.fresh, reports.AlertExpiring)
	assert.True(t, ok)
}

func TestAlerts_FilterByType(t *testing.T) {
	f := newFixture(t)

	report, err := f.env.Reports.Alerts(context.Background(), reports.AlertFilter{
		Types: []reports.AlertType{reports.AlertExpiring},
	})
	require.NoError(t, err)

	assert.Len(t, report.Alerts, 2, "both batches expire within the horizon")
	assert.Equal(t, map[reports.AlertType]int{reports.AlertExpiring: 2}, report.Counts)
}

func TestTurnover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Reports.Turnover(ctx, reports.TurnoverFilter{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	report, err := f.env.Reports.Turnover(ctx, reports.TurnoverFilter{
		FromDate:   f.env.Now.Add(-time.Hour),
		ToDate:     f.env.Now.Add(time.Hour),
		ProductIDs: []id.ID{f.empty, f.low},
	})
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "Product A-LOW", report.Rows[0].ProductName)
	empty := report.Rows[1]
	assert.Equal(t, types.Qty(5), empty.Receipt)
	assert.Equal(t, types.Qty(5), empty.Expense)
	assert.Zero(t, empty.ClosingBalance)
	assert.Equal(t, types.Qty(20), report.TotalReceipt)
	assert.Equal(t, types.Qty(15), report.TotalClosing)
}
