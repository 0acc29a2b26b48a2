package bins

import (
	"context"
	"fmt"
	"sort"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/lots"
	"stockledger/pkg/logger"
)

const (
	maxSuggestions   = 5
	lotScanPageSize  = 500
	scoreSameProduct = 100
	scoreRoomy       = 50
	scoreFits        = 30
)

// Suggestion is a candidate bin for a placement.
type Suggestion struct {
	BinID          id.ID          `json:"binId"`
	BinCode        string         `json:"binCode"`
	Zone           string         `json:"zone"`
	Rack           string         `json:"rack"`
	AvailableSpace types.Quantity `json:"availableSpace"`
	HasSameProduct bool           `json:"hasSameProduct"`
	Score          int            `json:"score"`
	Recommended    bool           `json:"recommended"`
}

// SuggestLocation ranks available bins that can hold sqftRequired of a product.
// Bins already holding the product come first, then bins with at least twice
// the space required.
func (s *Service) SuggestLocation(ctx context.Context, productID id.ID, sqftRequired types.Quantity, warehouseID *id.ID) ([]Suggestion, error) {
	if !sqftRequired.IsPositive() {
		return nil, apperror.NewValidation("sqftRequired must be positive").WithDetail("field", "sqftRequired")
	}

	candidates, err := s.repo.List(ctx, Filter{WarehouseID: warehouseID, AvailableOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}
	holding, err := s.binsHolding(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}

	out := make([]Suggestion, 0, len(candidates))
	for _, b := range candidates {
		space := b.AvailableSpace()
		if b.Status != StatusAvailable || space < sqftRequired || !b.Allows(productID) {
			continue
		}
		sg := Suggestion{
			BinID:          b.ID,
			BinCode:        b.Code,
			Zone:           b.Zone,
			Rack:           b.Rack,
			AvailableSpace: space,
			HasSameProduct: holding[b.ID],
		}
		switch {
		case sg.HasSameProduct:
			sg.Score = scoreSameProduct
		case space >= 2*sqftRequired:
			sg.Score = scoreRoomy
		default:
			sg.Score = scoreFits
		}
		out = append(out, sg)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].AvailableSpace != out[j].AvailableSpace {
			return out[i].AvailableSpace > out[j].AvailableSpace
		}
		return out[i].BinCode < out[j].BinCode
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	if len(out) > 0 {
		out[0].Recommended = true
	}
	return out, nil
}

func (s *Service) binsHolding(ctx context.Context, productID id.ID, warehouseID *id.ID) (map[id.ID]bool, error) {
	holding := make(map[id.ID]bool)
	filter := lots.Filter{
		ProductID:   &productID,
		WarehouseID: warehouseID,
		Page:        domain.Page{Limit: lotScanPageSize},
	}
	for {
		res, err := s.lots.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list lots: %w", err)
		}
		for _, l := range res.Items {
			if l.BinID != nil && l.Status != lots.StatusDepleted {
				holding[*l.BinID] = true
			}
		}
		if len(res.Items) < filter.Limit {
			return holding, nil
		}
		filter.Offset += filter.Limit
	}
}

// Summary aggregates a bin listing.
type Summary struct {
	Total         int            `json:"total"`
	Available     int            `json:"available"`
	Occupied      int            `json:"occupied"`
	Empty         int            `json:"empty"`
	Blocked       int            `json:"blocked"`
	TotalCapacity types.Quantity `json:"totalCapacity"`
	TotalOccupied types.Quantity `json:"totalOccupied"`
	AvgOccupancy  int            `json:"avgOccupancy"`
}

// BinList is a listing with its summary.
type BinList struct {
	Items   []*Bin  `json:"items"`
	Summary Summary `json:"summary"`
}

// List returns bins ordered by code with a summary. A bin is occupied when at
// least one lot is assigned to it.
func (s *Service) List(ctx context.Context, filter Filter) (*BinList, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}
	return &BinList{Items: items, Summary: summarize(items)}, nil
}

func summarize(items []*Bin) Summary {
	var sum Summary
	pct := 0
	for _, b := range items {
		sum.Total++
		if b.Status == StatusBlocked {
			sum.Blocked++
		} else {
			sum.Available++
		}
		if b.LotCount > 0 {
			sum.Occupied++
		} else {
			sum.Empty++
		}
		sum.TotalCapacity += b.Capacity
		sum.TotalOccupied += b.Occupancy
		pct += b.OccupancyPercent()
	}
	if sum.Total > 0 {
		sum.AvgOccupancy = (pct + sum.Total/2) / sum.Total
	}
	return sum
}

// Zone groups the racks of one zone.
type Zone struct {
	Zone  string `json:"zone"`
	Racks []Rack `json:"racks"`
}

// Rack groups the bins of one rack.
type Rack struct {
	Rack string `json:"rack"`
	Bins []*Bin `json:"bins"`
}

// WarehouseTree is the zone → rack → bin view of one warehouse.
type WarehouseTree struct {
	WarehouseID id.ID  `json:"warehouseId"`
	Zones       []Zone `json:"zones"`
}

// Hierarchy groups bins into warehouse → zone → rack → bins.
func (s *Service) Hierarchy(ctx context.Context, filter Filter) ([]WarehouseTree, error) {
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}

	var trees []WarehouseTree
	index := make(map[id.ID]int)
	for _, b := range items {
		wi, ok := index[b.WarehouseID]
		if !ok {
			wi = len(trees)
			index[b.WarehouseID] = wi
			trees = append(trees, WarehouseTree{WarehouseID: b.WarehouseID})
		}
		t := &trees[wi]

		zi := -1
		for i := range t.Zones {
			if t.Zones[i].Zone == b.Zone {
				zi = i
				break
			}
		}
		if zi < 0 {
			t.Zones = append(t.Zones, Zone{Zone: b.Zone})
			zi = len(t.Zones) - 1
		}
		z := &t.Zones[zi]

		ri := -1
		for i := range z.Racks {
			if z.Racks[i].Rack == b.Rack {
				ri = i
				break
			}
		}
		if ri < 0 {
			z.Racks = append(z.Racks, Rack{Rack: b.Rack})
			ri = len(z.Racks) - 1
		}
		z.Racks[ri].Bins = append(z.Racks[ri].Bins, b)
	}
	return trees, nil
}

// Drift is a bin whose materialized occupancy disagrees with its lots.
type Drift struct {
	BinID          id.ID          `json:"binId"`
	BinCode        string         `json:"binCode"`
	StoredSqft     types.Quantity `json:"storedSqft"`
	ActualSqft     types.Quantity `json:"actualSqft"`
	StoredLotCount int            `json:"storedLotCount"`
	ActualLotCount int            `json:"actualLotCount"`
	Repaired       bool           `json:"repaired"`
}

// VerifyOccupancy recomputes occupancy from the lots of every bin and reports
// the bins that drifted. With repair set the drifted bins are rewritten.
func (s *Service) VerifyOccupancy(ctx context.Context, warehouseID *id.ID, repair bool) ([]Drift, error) {
	items, err := s.repo.List(ctx, Filter{WarehouseID: warehouseID})
	if err != nil {
		return nil, fmt.Errorf("list bins: %w", err)
	}
	usage, err := s.lots.UsageByBin(ctx, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("sum lot usage: %w", err)
	}

	var drifts []Drift
	for _, b := range items {
		u := usage[b.ID]
		if u.Sqft == b.Occupancy && u.Count == b.LotCount {
			continue
		}
		d := Drift{
			BinID:          b.ID,
			BinCode:        b.Code,
			StoredSqft:     b.Occupancy,
			ActualSqft:     u.Sqft,
			StoredLotCount: b.LotCount,
			ActualLotCount: u.Count,
		}
		logger.Warn(ctx, "bin occupancy drift", "code", b.Code,
			"stored", b.Occupancy.String(), "actual", u.Sqft.String())

		if repair {
			err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
				locked, err := s.repo.GetForUpdate(ctx, b.ID)
				if err != nil {
					return err
				}
				locked.Occupancy = u.Sqft
				locked.LotCount = u.Count
				locked.UpdatedAt = s.now().UTC()
				return s.repo.Update(ctx, locked)
			})
			if err != nil {
				return drifts, fmt.Errorf("repair bin %s: %w", b.Code, err)
			}
			d.Repaired = true
		}
		drifts = append(drifts, d)
	}
	return drifts, nil
}
