package reports

import (
	"context"
)

// Repository defines report data access interface.
type Repository interface {
	// BalanceRows returns balances joined with product and warehouse data,
	// ordered by warehouse code then product code.
	BalanceRows(ctx context.Context, filter BalanceSheetFilter) ([]BalanceRow, error)

	// Turnover aggregates movements per balance over the filter period.
	Turnover(ctx context.Context, filter TurnoverFilter) ([]TurnoverRow, error)
}
