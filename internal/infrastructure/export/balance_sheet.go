// Package export renders reports as spreadsheet files.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"stockledger/internal/domain/reports"
)

// XLSXContentType is the media type of the rendered workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BalanceSheetName is the sheet holding the balance rows.
const BalanceSheetName = "Balance Sheet"

var balanceHeaders = []string{
	"Warehouse Code", "Warehouse", "Product Code", "Product", "Unit",
	"Quantity", "Reserved", "Available", "Avg Cost", "Reorder Level", "Max Stock", "Value",
}

var balanceWidths = []float64{16, 28, 16, 36, 8, 12, 12, 12, 12, 14, 12, 16}

// BalanceSheetFilename returns the attachment name of a balance sheet.
func BalanceSheetFilename(sheet *reports.BalanceSheet) string {
	return fmt.Sprintf("balance-sheet-%s.xlsx", sheet.GeneratedAt.UTC().Format("20060102-150405"))
}

// BalanceSheet renders the balance sheet as a workbook with a header row,
// one row per balance and a totals row. The caller closes the file.
func BalanceSheet(sheet *reports.BalanceSheet) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", BalanceSheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("total style: %w", err)
	}

	for i, h := range balanceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BalanceSheetName, cell, h)
		_ = f.SetCellStyle(BalanceSheetName, cell, cell, headerStyle)
	}

	for i, r := range sheet.Rows {
		row := i + 2
		values := []any{
			r.WarehouseCode, r.WarehouseName, r.ProductCode, r.ProductName, r.Unit,
			r.Quantity.Float64(), r.ReservedQty.Float64(), r.AvailableQty.Float64(),
			r.AvgCostPrice.InexactFloat64(), r.ReorderLevel.Float64(), r.MaxStock.Float64(),
			r.Value.InexactFloat64(),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			_ = f.SetCellValue(BalanceSheetName, cell, v)
		}
	}

	total := len(sheet.Rows) + 2
	totals := map[int]any{
		1:  "Total",
		6:  sheet.TotalQuantity.Float64(),
		7:  sheet.TotalReserved.Float64(),
		8:  sheet.TotalAvailable.Float64(),
		12: sheet.TotalValue.InexactFloat64(),
	}
	for col, v := range totals {
		cell, _ := excelize.CoordinatesToCellName(col, total)
		_ = f.SetCellValue(BalanceSheetName, cell, v)
	}
	first, _ := excelize.CoordinatesToCellName(1, total)
	last, _ := excelize.CoordinatesToCellName(len(balanceHeaders), total)
	_ = f.SetCellStyle(BalanceSheetName, first, last, totalStyle)

	for i, w := range balanceWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(BalanceSheetName, col, col, w)
	}
	if err := f.SetPanes(BalanceSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	return f, nil
}
