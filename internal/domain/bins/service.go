package bins

import (
	"bytes"
	"context"
	"fmt"
	"sort"
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
	"stockledger/internal/domain/lots"
	"stockledger/pkg/logger"
)

// maxBulkBins bounds a single bulk create.
const maxBulkBins = 5000

// Service is the bin/location capacity manager.
type Service struct {
	repo      Repository
	lots      lots.Repository
	catalog   ledger.Catalog
	txManager tx.Manager
	events    domain.EventPublisher
	audit     domain.AuditRecorder
	now       func() time.Time
}

// ServiceConfig wires the bin manager.
type ServiceConfig struct {
	Repo      Repository
	Lots      lots.Repository
	Catalog   ledger.Catalog
	TxManager tx.Manager
	Events    domain.EventPublisher
	Audit     domain.AuditRecorder
	Clock     func() time.Time
}

// NewService creates a bin manager.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		lots:      cfg.Lots,
		catalog:   cfg.Catalog,
		txManager: cfg.TxManager,
		events:    cfg.Events,
		audit:     cfg.Audit,
		now:       cfg.Clock,
	}
	if s.events == nil {
		s.events = domain.NopPublisher{}
	}
	if s.audit == nil {
		s.audit = domain.NopAuditRecorder{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateRequest describes a single bin.
type CreateRequest struct {
	WarehouseID     id.ID
	Code            string
	Zone            string
	Rack            string
	Shelf           string
	Bin             string
	Type            Type
	Capacity        types.Quantity
	Dimensions      *Dimensions
	MaxWeight       float64
	AllowedProducts []id.ID
	Notes           string
}

// Create adds one bin. Missing address parts default to A-01-1-1.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Bin, error) {
	if err := s.catalog.RequireWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, err
	}
	if req.Capacity.IsNegative() {
		return nil, apperror.NewValidation("capacity must not be negative").WithDetail("field", "capacity")
	}

	b := s.newBin(ctx, req.WarehouseID,
		defaultString(req.Zone, "A"), defaultString(req.Rack, "01"),
		defaultString(req.Shelf, "1"), defaultString(req.Bin, "1"),
		req.Type, req.Capacity, req.Dimensions, req.MaxWeight, req.AllowedProducts)
	if code := strings.TrimSpace(req.Code); code != "" {
		b.Code = code
	}
	b.Notes = req.Notes
	if err := validateType(b.Type); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, "bin_location", b.ID, domain.AuditActionCreate, map[string]any{"code": b.Code})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "bin created", "code", b.Code, "warehouse_id", b.WarehouseID)
	return b, nil
}

// BulkCreateRequest lays out a grid of bins.
type BulkCreateRequest struct {
	WarehouseID     id.ID
	Zones           []string
	RacksPerZone    int
	ShelvesPerRack  int
	BinsPerShelf    int
	CapacityPerBin  types.Quantity
	Type            Type
	Dimensions      *Dimensions
	MaxWeight       float64
	AllowedProducts []id.ID
}

// BulkCreate creates zones × racks × shelves × bins bins. Defaults: zone A,
// 5 racks, 4 shelves, 3 bins and 500 sqft per bin.
func (s *Service) BulkCreate(ctx context.Context, req BulkCreateRequest) ([]*Bin, error) {
	if err := s.catalog.RequireWarehouse(ctx, req.WarehouseID); err != nil {
		return nil, err
	}
	if len(req.Zones) == 0 {
		req.Zones = []string{"A"}
	}
	req.RacksPerZone = defaultInt(req.RacksPerZone, 5)
	req.ShelvesPerRack = defaultInt(req.ShelvesPerRack, 4)
	req.BinsPerShelf = defaultInt(req.BinsPerShelf, 3)
	if err := validateType(defaultType(req.Type)); err != nil {
		return nil, err
	}

	total := len(req.Zones) * req.RacksPerZone * req.ShelvesPerRack * req.BinsPerShelf
	if total > maxBulkBins {
		return nil, apperror.NewValidation(fmt.Sprintf("bulk create is limited to %d bins", maxBulkBins)).
			WithDetail("requested", total)
	}

	created := make([]*Bin, 0, total)
	codes := make([]string, 0, total)
	for _, zone := range req.Zones {
		for rack := 1; rack <= req.RacksPerZone; rack++ {
			for shelf := 1; shelf <= req.ShelvesPerRack; shelf++ {
				for bin := 1; bin <= req.BinsPerShelf; bin++ {
					b := s.newBin(ctx, req.WarehouseID, zone, fmt.Sprintf("%02d", rack),
						strconv.Itoa(shelf), strconv.Itoa(bin),
						req.Type, req.CapacityPerBin, req.Dimensions, req.MaxWeight, req.AllowedProducts)
					created = append(created, b)
					codes = append(codes, b.Code)
				}
			}
		}
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ExistingCodes(ctx, req.WarehouseID, codes)
		if err != nil {
			return fmt.Errorf("check bin codes: %w", err)
		}
		if len(existing) > 0 {
			return apperror.NewDuplicate("Bin location", "code", existing[0]).
				WithDetail("conflicts", len(existing))
		}
		return s.repo.CreateMany(ctx, created)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "bins created", "count", len(created), "warehouse_id", req.WarehouseID)
	return created, nil
}

func (s *Service) newBin(ctx context.Context, warehouseID id.ID, zone, rack, shelf, bin string,
	binType Type, capacity types.Quantity, dims *Dimensions, maxWeight float64, allowed []id.ID) *Bin {
	now := s.now().UTC()
	b := &Bin{
		ID:              id.New(),
		WarehouseID:     warehouseID,
		Code:            FormatCode(zone, rack, shelf, bin),
		Zone:            zone,
		Rack:            rack,
		Shelf:           shelf,
		Bin:             bin,
		Type:            defaultType(binType),
		Capacity:        capacity,
		Dimensions:      DefaultDimensions,
		MaxWeight:       maxWeight,
		AllowedProducts: allowed,
		Status:          StatusAvailable,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatedBy:       appctx.GetUserID(ctx),
	}
	if b.Capacity == 0 {
		b.Capacity = DefaultCapacity
	}
	if dims != nil {
		b.Dimensions = *dims
	}
	if b.MaxWeight == 0 {
		b.MaxWeight = DefaultMaxWeight
	}
	return b
}

// AssignLot places a lot into binCode of the lot's warehouse. When the lot
// already sits in another bin it is moved and the source bin released.
func (s *Service) AssignLot(ctx context.Context, lotID id.ID, binCode string) error {
	return s.relocate(ctx, lotID, "", binCode, "Bin capacity exceeded")
}

// MoveLot moves a lot from one bin to another and appends the move to the lot's
// location history. fromBin is optional and checked when given.
func (s *Service) MoveLot(ctx context.Context, lotID id.ID, fromBin, toBin string) error {
	return s.relocate(ctx, lotID, fromBin, toBin, "Destination bin capacity exceeded")
}

func (s *Service) relocate(ctx context.Context, lotID id.ID, fromCode, toCode, capacityMsg string) error {
	toCode = strings.TrimSpace(toCode)
	if toCode == "" {
		return apperror.NewValidation("bin code is required").WithDetail("field", "binCode")
	}

	var moved *lots.Lot
	var from, to string
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		lot, err := s.lots.GetForUpdate(ctx, lotID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("Lot", lotID.String())
			}
			return err
		}
		if fromCode != "" && lot.CurrentBin() != fromCode {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				fmt.Sprintf("Lot %s is not in bin %s", lot.LotNumber, fromCode)).
				WithDetail("currentBin", lot.CurrentBin())
		}

		dest, err := s.repo.GetByCode(ctx, lot.WarehouseID, toCode)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("Bin location", toCode)
			}
			return err
		}
		if lot.BinID != nil && *lot.BinID == dest.ID {
			return nil
		}

		dest, source, err := s.lockPair(ctx, dest.ID, lot.BinID)
		if err != nil {
			return err
		}
		if dest.Status == StatusBlocked {
			return apperror.NewBusinessRule(apperror.CodeBinBlocked,
				fmt.Sprintf("Bin %s is blocked", dest.Code)).WithDetail("reason", dest.BlockedReason)
		}
		if !dest.Allows(lot.ProductID) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule,
				fmt.Sprintf("Bin %s does not accept this product", dest.Code))
		}
		if dest.Occupancy+lot.Sqft > dest.Capacity {
			avail := dest.AvailableSpace()
			return apperror.NewCapacityExceeded(
				fmt.Sprintf("%s. Available: %s sqft", capacityMsg, formatQty(avail)), avail.Float64())
		}

		now := s.now().UTC()
		if source != nil {
			source.Occupancy = types.MaxQuantity(source.Occupancy-lot.Sqft, 0)
			source.LotCount = max(source.LotCount-1, 0)
			source.UpdatedAt = now
			if err := s.repo.Update(ctx, source); err != nil {
				return fmt.Errorf("update source bin: %w", err)
			}
		}
		dest.Occupancy += lot.Sqft
		dest.LotCount++
		dest.UpdatedAt = now
		if err := s.repo.Update(ctx, dest); err != nil {
			return fmt.Errorf("update bin: %w", err)
		}

		from = lot.CurrentBin()
		to = dest.Code
		if from != "" || fromCode != "" {
			lot.MovementHistory = append(lot.MovementHistory, lots.LocationChange{
				From:    from,
				To:      to,
				MovedAt: now,
				MovedBy: appctx.GetUserID(ctx),
			})
		}
		code, binID := dest.Code, dest.ID
		lot.BinCode = &code
		lot.BinID = &binID
		lot.UpdatedAt = now
		if err := s.lots.Update(ctx, lot); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}
		moved = lot

		return s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: "lot",
			AggregateID:   lot.ID,
			EventType:     domain.EventLotRelocated,
			Payload:       map[string]any{"lotNumber": lot.LotNumber, "from": from, "to": to},
		})
	})
	if err != nil {
		return err
	}
	if moved != nil {
		logger.Info(ctx, "lot placed", "lot_number", moved.LotNumber, "from", from, "to", to)
	}
	return nil
}

// lockPair locks the destination and the optional source bin in id order.
func (s *Service) lockPair(ctx context.Context, destID id.ID, sourceID *id.ID) (*Bin, *Bin, error) {
	ids := []id.ID{destID}
	if sourceID != nil {
		ids = append(ids, *sourceID)
		sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	}

	var dest, source *Bin
	for _, binID := range ids {
		b, err := s.repo.GetForUpdate(ctx, binID)
		if err != nil {
			return nil, nil, fmt.Errorf("lock bin: %w", err)
		}
		if binID == destID {
			dest = b
		} else {
			source = b
		}
	}
	return dest, source, nil
}

// AdjustOccupancy adds delta sqft to a bin after a lot in it changed size.
func (s *Service) AdjustOccupancy(ctx context.Context, binID id.ID, delta types.Quantity) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, binID)
		if err != nil {
			return fmt.Errorf("lock bin: %w", err)
		}
		b.Occupancy = types.MaxQuantity(b.Occupancy+delta, 0)
		b.UpdatedAt = s.now().UTC()
		if b.Occupancy > b.Capacity {
			logger.Warn(ctx, "bin over capacity", "code", b.Code,
				"occupancy", b.Occupancy.String(), "capacity", b.Capacity.String())
		}
		return s.repo.Update(ctx, b)
	})
}

// Block takes a bin out of placement.
func (s *Service) Block(ctx context.Context, binID id.ID, reason string) (*Bin, error) {
	return s.setStatus(ctx, binID, StatusBlocked, reason)
}

// Unblock returns a bin to placement.
func (s *Service) Unblock(ctx context.Context, binID id.ID) (*Bin, error) {
	return s.setStatus(ctx, binID, StatusAvailable, "")
}

func (s *Service) setStatus(ctx context.Context, binID id.ID, status Status, reason string) (*Bin, error) {
	var out *Bin
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, binID)
		if err != nil {
			return binNotFound(err, binID)
		}
		from := b.Status
		b.Status = status
		b.BlockedReason = reason
		b.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update bin: %w", err)
		}
		out = b
		return s.audit.LogChange(ctx, "bin_location", b.ID, domain.AuditActionTransition, map[string]any{
			"from": from, "to": status, "reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "bin status changed", "code", out.Code, "status", status)
	return out, nil
}

// UpdateRequest edits the descriptive fields of a bin.
type UpdateRequest struct {
	Capacity        *types.Quantity
	Type            *Type
	Dimensions      *Dimensions
	MaxWeight       *float64
	AllowedProducts []id.ID
	Notes           *string
}

// Update edits a bin. Capacity cannot drop below the current occupancy.
func (s *Service) Update(ctx context.Context, binID id.ID, req UpdateRequest) (*Bin, error) {
	var out *Bin
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, binID)
		if err != nil {
			return binNotFound(err, binID)
		}
		if req.Capacity != nil {
			if *req.Capacity < b.Occupancy {
				return apperror.NewCapacityExceeded(
					fmt.Sprintf("Capacity cannot be below current occupancy of %s sqft", formatQty(b.Occupancy)),
					b.Occupancy.Float64())
			}
			b.Capacity = *req.Capacity
		}
		if req.Type != nil {
			if err := validateType(*req.Type); err != nil {
				return err
			}
			b.Type = *req.Type
		}
		if req.Dimensions != nil {
			b.Dimensions = *req.Dimensions
		}
		if req.MaxWeight != nil {
			b.MaxWeight = *req.MaxWeight
		}
		if req.AllowedProducts != nil {
			b.AllowedProducts = req.AllowedProducts
		}
		if req.Notes != nil {
			b.Notes = *req.Notes
		}
		b.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update bin: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes an empty bin.
func (s *Service) Delete(ctx context.Context, binID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, binID)
		if err != nil {
			return binNotFound(err, binID)
		}
		assigned, err := s.lots.ListByBin(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("list lots in bin: %w", err)
		}
		if n := len(assigned); n > 0 {
			return apperror.NewBusinessRule(apperror.CodeBinNotEmpty,
				fmt.Sprintf("Cannot delete bin with %d lots. Move lots first.", n)).
				WithDetail("lotCount", n)
		}
		if err := s.repo.Delete(ctx, b.ID); err != nil {
			return fmt.Errorf("delete bin: %w", err)
		}
		return s.audit.LogChange(ctx, "bin_location", b.ID, domain.AuditActionDelete, map[string]any{"code": b.Code})
	})
}

// BinDetail is a bin with the lots it holds.
type BinDetail struct {
	*Bin
	Lots []*lots.Lot `json:"lots"`
}

// Get returns a bin with its lots.
func (s *Service) Get(ctx context.Context, binID id.ID) (*BinDetail, error) {
	b, err := s.repo.GetByID(ctx, binID)
	if err != nil {
		return nil, binNotFound(err, binID)
	}
	assigned, err := s.lots.ListByBin(ctx, b.ID)
	if err != nil {
		return nil, fmt.Errorf("list lots in bin: %w", err)
	}
	return &BinDetail{Bin: b, Lots: assigned}, nil
}

func binNotFound(err error, binID id.ID) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("Bin location", binID.String())
	}
	return err
}

func validateType(t Type) error {
	switch t {
	case TypePallet, TypeShelf, TypeFloor, TypeBulk:
		return nil
	}
	return apperror.NewValidation("invalid bin type").WithDetail("field", "type").WithDetail("value", string(t))
}

func defaultType(t Type) Type {
	if t == "" {
		return TypePallet
	}
	return t
}

func defaultString(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func formatQty(q types.Quantity) string {
	return strconv.FormatFloat(q.Float64(), 'f', -1, 64)
}

var _ lots.Locator = (*Service)(nil)
