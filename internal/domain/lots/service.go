package lots

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Locator places lots into bins. Implemented by the bin manager.
type Locator interface {
	AssignLot(ctx context.Context, lotID id.ID, binCode string) error
	// AdjustOccupancy adds delta sqft to the materialized occupancy of a bin.
	AdjustOccupancy(ctx context.Context, binID id.ID, delta types.Quantity) error
}

// Service provides lot operations.
type Service struct {
	repo      Repository
	ledger    *ledger.Service
	catalog   ledger.Catalog
	locator   Locator
	txManager tx.Manager
	audit     domain.AuditRecorder
	now       func() time.Time
}

// ServiceConfig wires the lot service.
type ServiceConfig struct {
	Repo      Repository
	Ledger    *ledger.Service
	Catalog   ledger.Catalog
	TxManager tx.Manager
	Audit     domain.AuditRecorder
	Clock     func() time.Time
}

// NewService creates a lot service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		ledger:    cfg.Ledger,
		catalog:   cfg.Catalog,
		txManager: cfg.TxManager,
		audit:     cfg.Audit,
		now:       cfg.Clock,
	}
	if s.audit == nil {
		s.audit = domain.NopAuditRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetLocator attaches the bin manager. The bin manager depends on the lot
// repository, so it is wired after construction.
func (s *Service) SetLocator(l Locator) {
	s.locator = l
}

// CreateRequest is a manually registered lot.
type CreateRequest struct {
	LotNumber         string
	Barcode           string
	ProductID         id.ID
	WarehouseID       id.ID
	Boxes             types.Quantity
	Sqft              types.Quantity
	Grade             string
	Shade             string
	PurchasePrice     types.Money
	LandedCostPerSqft types.Money
	MoistureContent   *float64
	ExpiryDate        *time.Time
	BinCode           string
	Specs             map[string]any
}

// Create registers a lot and posts its sqft to the ledger as a goods receipt,
// so the balance and the batch follow the lot.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Lot, error) {
	if id.IsNil(req.ProductID) {
		return nil, apperror.NewValidation("product id is required").WithDetail("field", "productId")
	}
	if id.IsNil(req.WarehouseID) {
		return nil, apperror.NewValidation("warehouse id is required").WithDetail("field", "warehouseId")
	}
	if !req.Sqft.IsPositive() {
		return nil, apperror.NewValidation("sqft must be positive").WithDetail("field", "sqft")
	}
	if req.Boxes.IsNegative() {
		return nil, apperror.NewValidation("boxes must not be negative").WithDetail("field", "boxes")
	}
	if req.LandedCostPerSqft.IsNegative() || req.PurchasePrice.IsNegative() {
		return nil, apperror.NewValidation("cost must not be negative").WithDetail("field", "landedCostPerSqft")
	}

	info, err := s.catalog.Product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	lot := &Lot{
		ID:                id.New(),
		LotNumber:         strings.TrimSpace(req.LotNumber),
		Barcode:           strings.TrimSpace(req.Barcode),
		ProductID:         req.ProductID,
		WarehouseID:       req.WarehouseID,
		Boxes:             req.Boxes,
		Sqft:              req.Sqft,
		Status:            StatusAvailable,
		QCStatus:          QCPending,
		MoistureContent:   req.MoistureContent,
		Grade:             req.Grade,
		Shade:             req.Shade,
		PurchasePrice:     req.PurchasePrice,
		LandedCostPerSqft: req.LandedCostPerSqft,
		TotalLandedCost:   req.Sqft.Mul(req.LandedCostPerSqft).Round(2),
		ExpiryDate:        req.ExpiryDate,
		ReceivedDate:      now,
		Specs:             req.Specs,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
		CreatedBy:         appctx.GetUserID(ctx),
	}
	if lot.LotNumber == "" {
		lot.LotNumber = "LOT-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	}
	if lot.Barcode == "" {
		lot.Barcode = defaultBarcode(lot.LotNumber, info.Code)
	}
	if lot.Grade == "" {
		lot.Grade = "A"
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByNumber(ctx, lot.LotNumber); err == nil {
			return apperror.NewDuplicate("Lot", "lotNumber", lot.LotNumber)
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("check lot number: %w", err)
		}
		if err := s.repo.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}

		rec := ledger.RecordRequest{
			Type:        ledger.MovementGoodsReceipt,
			ProductID:   lot.ProductID,
			WarehouseID: lot.WarehouseID,
			Quantity:    lot.Sqft,
			Batch:       &ledger.BatchInfo{LotNumber: lot.LotNumber, ExpiryDate: lot.ExpiryDate},
			Reference:   ledger.Reference{Type: ledger.RefLot, ID: &lot.ID, Number: lot.LotNumber},
			Notes:       "Manual lot " + lot.LotNumber,
		}
		if lot.LandedCostPerSqft.IsPositive() {
			cost := lot.LandedCostPerSqft
			rec.UnitCost = &cost
		}
		if _, err := s.ledger.RecordMovement(ctx, rec); err != nil {
			return err
		}

		if req.BinCode != "" {
			if s.locator == nil {
				return apperror.NewInternal(fmt.Errorf("lot locator is not configured"))
			}
			if err := s.locator.AssignLot(ctx, lot.ID, req.BinCode); err != nil {
				return err
			}
		}
		return s.audit.LogChange(ctx, "lot", lot.ID, domain.AuditActionCreate, map[string]any{
			"lotNumber": lot.LotNumber,
			"sqft":      lot.Sqft.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot created", "lot_number", lot.LotNumber, "sqft", lot.Sqft.String())
	return s.Get(ctx, lot.ID)
}

// ReceivedLot is a lot registered by a goods receipt whose movement is already posted.
type ReceivedLot struct {
	LotNumber   string
	ProductID   id.ID
	WarehouseID id.ID
	Sqft        types.Quantity
	UnitCost    types.Money
	ExpiryDate  *time.Time
	GRNID       id.ID
	ReceivedAt  time.Time
}

// RegisterReceived records the lot of a received GRN line. A lot number seen
// before is topped up. No movement is posted here.
func (s *Service) RegisterReceived(ctx context.Context, req ReceivedLot) (*Lot, error) {
	var lot *Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByNumber(ctx, req.LotNumber)
		switch {
		case err == nil:
			if existing.ProductID != req.ProductID || existing.WarehouseID != req.WarehouseID {
				return apperror.NewBusinessRule(apperror.CodeBusinessRule,
					fmt.Sprintf("Lot %s belongs to another product or warehouse", req.LotNumber))
			}
			locked, err := s.repo.GetForUpdate(ctx, existing.ID)
			if err != nil {
				return fmt.Errorf("lock lot: %w", err)
			}
			locked.Sqft += req.Sqft
			locked.TotalLandedCost = locked.TotalLandedCost.Add(req.Sqft.Mul(req.UnitCost).Round(2))
			if locked.Status == StatusDepleted {
				locked.Status = StatusPartial
			}
			locked.UpdatedAt = req.ReceivedAt
			if err := s.repo.Update(ctx, locked); err != nil {
				return fmt.Errorf("update lot: %w", err)
			}
			if locked.BinID != nil && s.locator != nil {
				if err := s.locator.AdjustOccupancy(ctx, *locked.BinID, req.Sqft); err != nil {
					return err
				}
			}
			lot = locked
			return nil
		case !apperror.IsNotFound(err):
			return fmt.Errorf("get lot: %w", err)
		}

		grnID := req.GRNID
		lot = &Lot{
			ID:                id.New(),
			LotNumber:         req.LotNumber,
			ProductID:         req.ProductID,
			WarehouseID:       req.WarehouseID,
			Sqft:              req.Sqft,
			Status:            StatusAvailable,
			QCStatus:          QCPending,
			Grade:             "A",
			LandedCostPerSqft: req.UnitCost,
			TotalLandedCost:   req.Sqft.Mul(req.UnitCost).Round(2),
			ExpiryDate:        req.ExpiryDate,
			ReceivedDate:      req.ReceivedAt,
			GRNID:             &grnID,
			Version:           1,
			CreatedAt:         req.ReceivedAt,
			UpdatedAt:         req.ReceivedAt,
			CreatedBy:         appctx.GetUserID(ctx),
		}
		lot.Barcode = defaultBarcode(lot.LotNumber, "")
		if err := s.repo.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// Get returns one lot.
func (s *Service) Get(ctx context.Context, lotID id.ID) (*Lot, error) {
	lot, err := s.repo.GetByID(ctx, lotID)
	if err != nil {
		return nil, notFound(err, lotID)
	}
	return lot, nil
}

// Reserve holds qty sqft of the lot.
func (s *Service) Reserve(ctx context.Context, lotID id.ID, qty types.Quantity) (*Lot, error) {
	return s.mutate(ctx, lotID, "reserve", func(lot *Lot) error {
		if err := requirePositive(qty); err != nil {
			return err
		}
		if err := requireUsable(lot, "reserved"); err != nil {
			return err
		}
		if avail := lot.AvailableQty(); qty > avail {
			return apperror.NewBusinessRule(apperror.CodeLotQuantity,
				fmt.Sprintf("Only %s sqft available", formatSqft(avail))).
				WithDetail("available", avail.Float64())
		}
		lot.ReservedQty += qty
		lot.syncStatus()
		return nil
	})
}

// Release frees up to qty reserved sqft.
func (s *Service) Release(ctx context.Context, lotID id.ID, qty types.Quantity) (*Lot, error) {
	return s.mutate(ctx, lotID, "release", func(lot *Lot) error {
		if err := requirePositive(qty); err != nil {
			return err
		}
		lot.ReservedQty -= types.MinQuantity(qty, lot.ReservedQty)
		lot.syncStatus()
		return nil
	})
}

// Issue hands out qty sqft of the lot.
func (s *Service) Issue(ctx context.Context, lotID id.ID, qty types.Quantity) (*Lot, error) {
	return s.mutate(ctx, lotID, "issue", func(lot *Lot) error {
		if err := requirePositive(qty); err != nil {
			return err
		}
		if err := requireUsable(lot, "issued"); err != nil {
			return err
		}
		if remaining := lot.Sqft - lot.IssuedQty; qty > remaining {
			return apperror.NewBusinessRule(apperror.CodeLotQuantity,
				fmt.Sprintf("Only %s sqft available to issue", formatSqft(remaining))).
				WithDetail("available", remaining.Float64())
		}
		lot.IssuedQty += qty
		lot.syncStatus()
		return nil
	})
}

// QCPass records a passed quality check.
func (s *Service) QCPass(ctx context.Context, lotID id.ID, moisture *float64, notes string) (*Lot, error) {
	return s.mutate(ctx, lotID, "qc_pass", func(lot *Lot) error {
		lot.QCStatus = QCPassed
		lot.QCNotes = defaultString(notes, "QC Passed")
		if moisture != nil {
			lot.MoistureContent = moisture
		}
		return nil
	})
}

// QCFail records a failed quality check; the lot becomes damaged.
func (s *Service) QCFail(ctx context.Context, lotID id.ID, defects []string, notes string) (*Lot, error) {
	return s.mutate(ctx, lotID, "qc_fail", func(lot *Lot) error {
		lot.QCStatus = QCFailed
		lot.QCNotes = defaultString(notes, "QC Failed")
		lot.Defects = defects
		lot.Status = StatusDamaged
		return nil
	})
}

// MarkDamaged flags the lot as damaged.
func (s *Service) MarkDamaged(ctx context.Context, lotID id.ID, notes string) (*Lot, error) {
	return s.mutate(ctx, lotID, "mark_damaged", func(lot *Lot) error {
		lot.Status = StatusDamaged
		if notes != "" {
			lot.QCNotes = notes
		}
		return nil
	})
}

// UpdateLocation moves the lot into binCode through the bin manager.
func (s *Service) UpdateLocation(ctx context.Context, lotID id.ID, binCode string) (*Lot, error) {
	if strings.TrimSpace(binCode) == "" {
		return nil, apperror.NewValidation("bin code is required").WithDetail("field", "binCode")
	}
	if s.locator == nil {
		return nil, apperror.NewInternal(fmt.Errorf("lot locator is not configured"))
	}
	if err := s.locator.AssignLot(ctx, lotID, binCode); err != nil {
		return nil, err
	}
	return s.Get(ctx, lotID)
}

// LotList is a page of lots with a summary over the page.
type LotList struct {
	domain.ListResult[*Lot]
	Summary Summary
}

// Summary aggregates a lot listing.
type Summary struct {
	Total          int            `json:"total"`
	TotalSqft      types.Quantity `json:"totalSqft"`
	TotalBoxes     types.Quantity `json:"totalBoxes"`
	AvailableLots  int            `json:"availableLots"`
	ReservedLots   int            `json:"reservedLots"`
	UniqueShades   int            `json:"uniqueShades"`
	AvgCostPerSqft types.Money    `json:"avgCostPerSqft"`
	Aging          Aging          `json:"aging"`
}

// Aging buckets lots by days since receipt.
type Aging struct {
	Under30     int `json:"under30"`
	Days30to60  int `json:"days30to60"`
	Days60to90  int `json:"days60to90"`
	Days90to180 int `json:"days90to180"`
	Over180     int `json:"over180"`
}

// List returns lots with a summary.
func (s *Service) List(ctx context.Context, filter Filter) (*LotList, error) {
	filter.Page = filter.Page.Normalize(50, 500)
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	return &LotList{ListResult: page, Summary: summarize(page.Items, s.now())}, nil
}

func summarize(items []*Lot, now time.Time) Summary {
	sum := Summary{Total: len(items)}
	shades := make(map[string]struct{})
	var costSum types.Money
	for _, l := range items {
		sum.TotalSqft += l.Sqft
		sum.TotalBoxes += l.Boxes
		if l.Status == StatusAvailable {
			sum.AvailableLots++
		}
		if l.ReservedQty > 0 {
			sum.ReservedLots++
		}
		if l.Shade != "" {
			shades[l.Shade] = struct{}{}
		}
		costSum = costSum.Add(l.LandedCostPerSqft)

		switch days := now.Sub(l.ReceivedDate).Hours() / 24; {
		case days <= 30:
			sum.Aging.Under30++
		case days <= 60:
			sum.Aging.Days30to60++
		case days <= 90:
			sum.Aging.Days60to90++
		case days <= 180:
			sum.Aging.Days90to180++
		default:
			sum.Aging.Over180++
		}
	}
	sum.UniqueShades = len(shades)
	if len(items) > 0 {
		sum.AvgCostPerSqft = costSum.DivRound(types.NewMoney(float64(len(items))), 4)
	}
	return sum
}

// mutate runs fn on the locked lot and saves it.
func (s *Service) mutate(ctx context.Context, lotID id.ID, action string, fn func(*Lot) error) (*Lot, error) {
	var lot *Lot
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.repo.GetForUpdate(ctx, lotID)
		if err != nil {
			return notFound(err, lotID)
		}
		before := l.Status
		if err := fn(l); err != nil {
			return err
		}
		l.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		lot = l
		return s.audit.LogChange(ctx, "lot", l.ID, domain.AuditActionUpdate, map[string]any{
			"action":     action,
			"statusFrom": before,
			"statusTo":   l.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "lot updated", "lot_number", lot.LotNumber, "action", action, "status", lot.Status)
	return lot, nil
}

func notFound(err error, lotID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("Lot", lotID.String())
	}
	return err
}

func requirePositive(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}
	return nil
}

func requireUsable(lot *Lot, verb string) error {
	if lot.Status == StatusDamaged || lot.Status == StatusReturned {
		return apperror.NewInvalidStatus(
			fmt.Sprintf("A %s lot cannot be %s", lot.Status, verb), string(lot.Status))
	}
	return nil
}

func defaultBarcode(lotNumber, productCode string) string {
	suffix := "XXX"
	if len(productCode) >= 4 {
		suffix = productCode[len(productCode)-4:]
	} else if productCode != "" {
		suffix = productCode
	}
	return lotNumber + "-" + suffix
}

func defaultString(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
