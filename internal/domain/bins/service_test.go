package bins_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/lots"
)

type fixture struct {
	env       *apptest.Env
	product   id.ID
	warehouse id.ID
}

func newFixture(t *testing.T) *fixture {
	env := apptest.New(t)
	return &fixture{env: env, product: env.Product(t, "OAK-01"), warehouse: env.Warehouse(t, "MAIN")}
}

func (f *fixture) bin(t *testing.T, code string, capacity int64) *bins.Bin {
	t.Helper()
	b, err := f.env.Bins.Create(context.Background(), bins.CreateRequest{
		WarehouseID: f.warehouse,
		Code:        code,
		Capacity:    types.Qty(capacity),
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) lot(t *testing.T, number string, sqft int64) *lots.Lot {
	t.Helper()
	lot, err := f.env.Lots.Create(context.Background(), lots.CreateRequest{
		LotNumber:   number,
		ProductID:   f.product,
		WarehouseID: f.warehouse,
		Sqft:        types.Qty(sqft),
	})
	require.NoError(t, err)
	return lot
}

func (f *fixture) getBin(t *testing.T, binID id.ID) *bins.BinDetail {
	t.Helper()
	b, err := f.env.Bins.Get(context.Background(), binID)
	require.NoError(t, err)
	return b
}

func TestAssignLot_RejectsOverCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bin(t, "A-01-1-1", 500)

	small := f.lot(t, "LOT-50", 50)
	require.NoError(t, f.env.Bins.AssignLot(ctx, small.ID, b.Code))

	big := f.lot(t, "LOT-600", 600)
	err := f.env.Bins.AssignLot(ctx, big.ID, b.Code)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeCapacityExceeded))
	assert.Contains(t, err.Error(), "Available: 450 sqft")

	got := f.getBin(t, b.ID)
	assert.Equal(t, types.Qty(50), got.Occupancy)
	assert.Equal(t, 1, got.LotCount)
	require.Len(t, got.Lots, 1)
	assert.Equal(t, "LOT-50", got.Lots[0].LotNumber)
}

func TestAssignLot_ConcurrentAssignmentsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bin(t, "A-01-1-1", 500)
	first, second := f.lot(t, "LOT-1", 460), f.lot(t, "LOT-2", 460)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, lot := range []*lots.Lot{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.env.Bins.AssignLot(ctx, lot.ID, b.Code)
		}()
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperror.HasCode(err, apperror.CodeCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, types.Qty(460), f.getBin(t, b.ID).Occupancy)
}

func TestMoveLot_ReleasesSourceAndRecordsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src, dst := f.bin(t, "A-01-1-1", 500), f.bin(t, "A-01-1-2", 500)
	lot := f.lot(t, "LOT-1", 120)

	require.NoError(t, f.env.Bins.AssignLot(ctx, lot.ID, src.Code))

	err := f.env.Bins.MoveLot(ctx, lot.ID, "A-09-9-9", dst.Code)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	require.NoError(t, f.env.Bins.MoveLot(ctx, lot.ID, src.Code, dst.Code))

	assert.Zero(t, f.getBin(t, src.ID).Occupancy)
	assert.Zero(t, f.getBin(t, src.ID).LotCount)
	assert.Equal(t, types.Qty(120), f.getBin(t, dst.ID).Occupancy)

	moved, err := f.env.Lots.Get(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, dst.Code, moved.CurrentBin())
	require.Len(t, moved.MovementHistory, 1)
	assert.Equal(t, src.Code, moved.MovementHistory[0].From)
	assert.Equal(t, dst.Code, moved.MovementHistory[0].To)
}

func TestAssignLot_BlockedBin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bin(t, "A-01-1-1", 500)
	lot := f.lot(t, "LOT-1", 10)

	_, err := f.env.Bins.Block(ctx, b.ID, "leaking roof")
	require.NoError(t, err)

	err = f.env.Bins.AssignLot(ctx, lot.ID, b.Code)
	assert.True(t, apperror.HasCode(err, apperror.CodeBinBlocked))

	_, err = f.env.Bins.Unblock(ctx, b.ID)
	require.NoError(t, err)
	assert.NoError(t, f.env.Bins.AssignLot(ctx, lot.ID, b.Code))
}

func TestBulkCreate_GridAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.env.Bins.BulkCreate(ctx, bins.BulkCreateRequest{
		WarehouseID:    f.warehouse,
		Zones:          []string{"A", "B"},
		RacksPerZone:   2,
		ShelvesPerRack: 2,
		BinsPerShelf:   2,
	})
	require.NoError(t, err)
	assert.Len(t, created, 16)
	assert.Equal(t, "A-01-1-1", created[0].Code)
	assert.Equal(t, bins.DefaultCapacity, created[0].Capacity)

	_, err = f.env.Bins.BulkCreate(ctx, bins.BulkCreateRequest{
		WarehouseID:    f.warehouse,
		Zones:          []string{"B"},
		RacksPerZone:   1,
		ShelvesPerRack: 1,
		BinsPerShelf:   1,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	trees, err := f.env.Bins.Hierarchy(ctx, bins.Filter{WarehouseID: &f.warehouse})
	require.NoError(t, err)
	require.Len(t, trees, 1)
	require.Len(t, trees[0].Zones, 2)
	assert.Len(t, trees[0].Zones[0].Racks, 2)
	assert.Len(t, trees[0].Zones[0].Racks[0].Bins, 4)
}

func TestDelete_RefusesOccupiedBin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bin(t, "A-01-1-1", 500)
	lot := f.lot(t, "LOT-1", 10)
	require.NoError(t, f.env.Bins.AssignLot(ctx, lot.ID, b.Code))

	err := f.env.Bins.Delete(ctx, b.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBinNotEmpty))

	empty := f.bin(t, "A-01-1-2", 500)
	require.NoError(t, f.env.Bins.Delete(ctx, empty.ID))
	_, err = f.env.Bins.Get(ctx, empty.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdate_CapacityBelowOccupancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bin(t, "A-01-1-1", 500)
	lot := f.lot(t, "LOT-1", 200)
	require.NoError(t, f.env.Bins.AssignLot(ctx, lot.ID, b.Code))

	low := types.Qty(150)
	_, err := f.env.Bins.Update(ctx, b.ID, bins.UpdateRequest{Capacity: &low})
	assert.True(t, apperror.HasCode(err, apperror.CodeCapacityExceeded))

	high := types.Qty(800)
	updated, err := f.env.Bins.Update(ctx, b.ID, bins.UpdateRequest{Capacity: &high})
	require.NoError(t, err)
	assert.Equal(t, high, updated.Capacity)
}

func TestSuggestLocation_PrefersBinsHoldingProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	holding := f.bin(t, "A-01-1-1", 500)
	roomy := f.bin(t, "A-01-1-2", 1000)
	f.bin(t, "A-01-1-3", 90)

	lot := f.lot(t, "LOT-1", 300)
	require.NoError(t, f.env.Bins.AssignLot(ctx, lot.ID, holding.Code))

	got, err := f.env.Bins.SuggestLocation(ctx, f.product, types.Qty(100), &f.warehouse)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, holding.Code, got[0].BinCode)
	assert.True(t, got[0].Recommended)
	assert.True(t, got[0].HasSameProduct)
	assert.Equal(t, roomy.Code, got[1].BinCode)
	assert.False(t, got[1].Recommended)
}

func TestVerifyOccupancy_RepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.bin(t, "A-01-1-1", 500)
	lot := f.lot(t, "LOT-1", 80)
	require.NoError(t, f.env.Bins.AssignLot(ctx, lot.ID, b.Code))

	require.NoError(t, f.env.Bins.AdjustOccupancy(ctx, b.ID, types.Qty(15)))

	drifts, err := f.env.Bins.VerifyOccupancy(ctx, &f.warehouse, true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, types.Qty(95), drifts[0].StoredSqft)
	assert.Equal(t, types.Qty(80), drifts[0].ActualSqft)
	assert.True(t, drifts[0].Repaired)

	drifts, err = f.env.Bins.VerifyOccupancy(ctx, &f.warehouse, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}
