package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/reports"
)

func TestBalanceSheet(t *testing.T) {
	sheet := &reports.BalanceSheet{
		GeneratedAt: time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
		Rows: []reports.BalanceRow{
			{
				WarehouseID:   id.New(),
				WarehouseCode: "WH-MAIN",
				WarehouseName: "Main",
				ProductID:     id.New(),
				ProductCode:   "TILE-001",
				ProductName:   "Marble 60x60",
				Unit:          "box",
				Quantity:      types.Qty(10),
				AvailableQty:  types.Qty(10),
				AvgCostPrice:  types.NewMoney(12.5),
				Value:         types.NewMoney(125),
			},
		},
		TotalQuantity:  types.Qty(10),
		TotalAvailable: types.Qty(10),
		TotalValue:     types.NewMoney(125),
	}

	f, err := BalanceSheet(sheet)
	require.NoError(t, err)
	defer f.Close()

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	read, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer read.Close()

	rows, err := read.GetRows(BalanceSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, balanceHeaders, rows[0])
	assert.Equal(t, "WH-MAIN", rows[1][0])
	assert.Equal(t, "Marble 60x60", rows[1][3])
	assert.Equal(t, "Total", rows[2][0])

	assert.Equal(t, "balance-sheet-20260301-103000.xlsx", BalanceSheetFilename(sheet))
}

func TestBalanceSheet_Empty(t *testing.T) {
	f, err := BalanceSheet(&reports.BalanceSheet{GeneratedAt: time.Now()})
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(BalanceSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Total", rows[1][0])
}
