package reports

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/batches"
	"stockledger/pkg/logger"
)

const maxExpiryBatches = 10000

// Service provides report generation operations.
type Service struct {
	repo    Repository
	batches batches.Repository
	now     func() time.Time
}

// NewService creates a new reports service.
func NewService(repo Repository, batchRepo batches.Repository, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{repo: repo, batches: batchRepo, now: clock}
}

// BalanceSheet values every matching balance at its average cost.
func (s *Service) BalanceSheet(ctx context.Context, filter BalanceSheetFilter) (*BalanceSheet, error) {
	rows, err := s.repo.BalanceRows(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get balance rows: %w", err)
	}

	sheet := &BalanceSheet{
		GeneratedAt: s.now().UTC(),
		Rows:        make([]BalanceRow, 0, len(rows)),
		TotalValue:  types.Zero(),
	}
	for _, r := range rows {
		if filter.ExcludeZero && r.Quantity == 0 {
			continue
		}
		r.AvailableQty = r.Quantity - r.ReservedQty
		r.Value = r.Quantity.Mul(r.AvgCostPrice).Round(2)
		sheet.Rows = append(sheet.Rows, r)
		sheet.TotalQuantity += r.Quantity
		sheet.TotalReserved += r.ReservedQty
		sheet.TotalAvailable += r.AvailableQty
		sheet.TotalValue = sheet.TotalValue.Add(r.Value)
	}
	return sheet, nil
}

// Turnover generates the stock turnover report of a period.
func (s *Service) Turnover(ctx context.Context, filter TurnoverFilter) (*TurnoverReport, error) {
	if filter.FromDate.IsZero() || filter.ToDate.IsZero() {
		return nil, apperror.NewValidation("fromDate and toDate are required").WithDetail("field", "fromDate")
	}
	if filter.FromDate.After(filter.ToDate) {
		return nil, apperror.NewValidation("fromDate must be before toDate").WithDetail("field", "fromDate")
	}

	rows, err := s.repo.Turnover(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("get stock turnover: %w", err)
	}

	report := &TurnoverReport{FromDate: filter.FromDate, ToDate: filter.ToDate, Rows: make([]TurnoverRow, 0, len(rows))}
	for _, r := range rows {
		if !filter.IncludeZero && r.Receipt == 0 && r.Expense == 0 {
			continue
		}
		report.Rows = append(report.Rows, r)
		report.TotalOpening += r.OpeningBalance
		report.TotalReceipt += r.Receipt
		report.TotalExpense += r.Expense
		report.TotalClosing += r.ClosingBalance
	}
	return report, nil
}

// Alerts scans balances for out of stock, low stock and overstock, and active
// batches for expired and expiring stock.
func (s *Service) Alerts(ctx context.Context, filter AlertFilter) (*AlertReport, error) {
	now := s.now().UTC()

	var rows []BalanceRow
	var expiring []*batches.Batch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bf := BalanceSheetFilter{}
		if filter.WarehouseID != nil {
			bf.WarehouseIDs = []id.ID{*filter.WarehouseID}
		}
		var err error
		rows, err = s.repo.BalanceRows(gctx, bf)
		if err != nil {
			return fmt.Errorf("get balance rows: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		horizon := now.Add(ExpiryHorizon)
		var err error
		expiring, err = s.batches.List(gctx, batches.Filter{
			WarehouseID:    filter.WarehouseID,
			Status:         batches.StatusActive,
			ExpiringBefore: &horizon,
			Page:           domain.Page{Limit: maxExpiryBatches},
		})
		if err != nil {
			return fmt.Errorf("list expiring batches: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[id.ID]string, len(rows))
	var alerts []Alert
	for _, r := range rows {
		names[r.ProductID] = r.ProductName
		alerts = append(alerts, balanceAlerts(r)...)
	}
	for _, b := range expiring {
		if a, ok := batchAlert(b, now); ok {
			a.ProductName = names[b.ProductID]
			alerts = append(alerts, a)
		}
	}

	if len(filter.Types) > 0 {
		alerts = slices.DeleteFunc(alerts, func(a Alert) bool { return !slices.Contains(filter.Types, a.Type) })
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
	})

	report := &AlertReport{
		Alerts:     alerts,
		Counts:     make(map[AlertType]int),
		BySeverity: make(map[Severity]int),
	}
	for _, a := range alerts {
		report.Counts[a.Type]++
		report.BySeverity[a.Severity]++
	}
	if report.Alerts == nil {
		report.Alerts = []Alert{}
	}
	logger.Debug(ctx, "stock alerts scanned", "alerts", len(alerts))
	return report, nil
}

func balanceAlerts(r BalanceRow) []Alert {
	available := r.Quantity - r.ReservedQty
	base := Alert{
		ProductID:    r.ProductID,
		ProductName:  r.ProductName,
		WarehouseID:  r.WarehouseID,
		Quantity:     r.Quantity,
		AvailableQty: available,
		ReorderLevel: r.ReorderLevel,
		MaxStock:     r.MaxStock,
	}

	var out []Alert
	switch {
	case available <= 0:
		a := base
		a.Type, a.Severity = AlertOutOfStock, SeverityCritical
		a.Message = fmt.Sprintf("%s is out of stock", label(r))
		out = append(out, a)
	case available <= r.ReorderLevel:
		a := base
		a.Type, a.Severity = AlertLowStock, SeverityWarning
		a.SuggestedOrder = types.MaxQuantity(r.MaxStock-r.Quantity, 0)
		a.Message = fmt.Sprintf("%s is low: %s available, reorder level %s", label(r), available, r.ReorderLevel)
		out = append(out, a)
	}
	if r.MaxStock > 0 && r.Quantity > r.MaxStock {
		a := base
		a.Type, a.Severity = AlertOverstock, SeverityInfo
		a.Message = fmt.Sprintf("%s is over max stock: %s > %s", label(r), r.Quantity, r.MaxStock)
		out = append(out, a)
	}
	return out
}

func batchAlert(b *batches.Batch, now time.Time) (Alert, bool) {
	if b.Quantity <= 0 || b.ExpiryDate == nil {
		return Alert{}, false
	}
	a := Alert{
		ProductID:   b.ProductID,
		WarehouseID: b.WarehouseID,
		Quantity:    b.Quantity,
		BatchNumber: b.BatchNumber,
		ExpiryDate:  b.ExpiryDate,
	}
	switch {
	case b.IsExpired(now):
		a.Type, a.Severity = AlertExpired, SeverityCritical
		a.Message = fmt.Sprintf("Batch %s expired on %s", b.BatchNumber, b.ExpiryDate.Format(time.DateOnly))
	case b.ExpiresWithin(now, ExpiryHorizon):
		a.Type, a.Severity = AlertExpiring, SeverityWarning
		a.Message = fmt.Sprintf("Batch %s expires on %s", b.BatchNumber, b.ExpiryDate.Format(time.DateOnly))
	default:
		return Alert{}, false
	}
	return a, true
}

func label(r BalanceRow) string {
	if r.ProductName != "" {
		return r.ProductName
	}
	return r.ProductID.String()
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	}
	return 2
}
