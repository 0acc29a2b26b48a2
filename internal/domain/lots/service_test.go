package lots_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/lots"
)

func TestCreate_PostsReceiptToLedger(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "TILE-0042"), env.Warehouse(t, "MAIN")

	lot, err := env.Lots.Create(ctx, lots.CreateRequest{
		LotNumber:         "LOT-A",
		ProductID:         p,
		WarehouseID:       w,
		Sqft:              types.Qty(240),
		LandedCostPerSqft: types.MustMoney("3.5"),
	})
	require.NoError(t, err)

	assert.Equal(t, lots.StatusAvailable, lot.Status)
	assert.Equal(t, lots.QCPending, lot.QCStatus)
	assert.Equal(t, "LOT-A-0042", lot.Barcode)
	assert.True(t, types.MustMoney("840").Equal(lot.TotalLandedCost))

	bal := env.Balance(t, p, w)
	assert.Equal(t, types.Qty(240), bal.Quantity)
	assert.True(t, types.MustMoney("3.5").Equal(bal.AvgCostPrice))

	_, err = env.Lots.Create(ctx, lots.CreateRequest{LotNumber: "LOT-A", ProductID: p, WarehouseID: w, Sqft: types.Qty(1)})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestCreate_WithBinRollsBackOnCapacity(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	_, err := env.Bins.Create(ctx, bins.CreateRequest{WarehouseID: w, Code: "A-01-1-1", Capacity: types.Qty(100)})
	require.NoError(t, err)

	_, err = env.Lots.Create(ctx, lots.CreateRequest{
		LotNumber: "LOT-BIG", ProductID: p, WarehouseID: w, Sqft: types.Qty(150), BinCode: "A-01-1-1",
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeCapacityExceeded))

	_, err = env.Ledger.GetBalance(ctx, p, w)
	assert.True(t, apperror.IsNotFound(err), "ledger receipt must roll back with the lot")

	lot, err := env.Lots.Create(ctx, lots.CreateRequest{
		LotNumber: "LOT-OK", ProductID: p, WarehouseID: w, Sqft: types.Qty(60), BinCode: "A-01-1-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "A-01-1-1", lot.CurrentBin())
}

func TestReserveReleaseIssue(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	lot, err := env.Lots.Create(ctx, lots.CreateRequest{LotNumber: "LOT-1", ProductID: p, WarehouseID: w, Sqft: types.Qty(100)})
	require.NoError(t, err)

	lot, err = env.Lots.Reserve(ctx, lot.ID, types.Qty(40))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusPartial, lot.Status)

	_, err = env.Lots.Reserve(ctx, lot.ID, types.Qty(61))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeLotQuantity))
	assert.Contains(t, err.Error(), "Only 60 sqft available")

	lot, err = env.Lots.Reserve(ctx, lot.ID, types.Qty(60))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusReserved, lot.Status)

	lot, err = env.Lots.Release(ctx, lot.ID, types.Qty(500))
	require.NoError(t, err)
	assert.Zero(t, lot.ReservedQty)
	assert.Equal(t, lots.StatusAvailable, lot.Status)

	lot, err = env.Lots.Issue(ctx, lot.ID, types.Qty(70))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusPartial, lot.Status)

	_, err = env.Lots.Issue(ctx, lot.ID, types.Qty(31))
	assert.Contains(t, err.Error(), "Only 30 sqft available to issue")

	lot, err = env.Lots.Issue(ctx, lot.ID, types.Qty(30))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusDepleted, lot.Status)
}

func TestRelease_KeepsStatusOfIssuedLot(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	lot, err := env.Lots.Create(ctx, lots.CreateRequest{LotNumber: "LOT-2", ProductID: p, WarehouseID: w, Sqft: types.Qty(100)})
	require.NoError(t, err)

	_, err = env.Lots.Reserve(ctx, lot.ID, types.Qty(40))
	require.NoError(t, err)
	lot, err = env.Lots.Issue(ctx, lot.ID, types.Qty(30))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusPartial, lot.Status)

	lot, err = env.Lots.Release(ctx, lot.ID, types.Qty(40))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusPartial, lot.Status, "sqft already issued")

	_, err = env.Lots.Reserve(ctx, lot.ID, types.Qty(10))
	require.NoError(t, err)
	lot, err = env.Lots.Issue(ctx, lot.ID, types.Qty(70))
	require.NoError(t, err)
	assert.Equal(t, lots.StatusDepleted, lot.Status)

	lot, err = env.Lots.Release(ctx, lot.ID, types.Qty(10))
	require.NoError(t, err)
	assert.Zero(t, lot.ReservedQty)
	assert.Equal(t, lots.StatusDepleted, lot.Status)
}

func TestQualityChecks(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	lot, err := env.Lots.Create(ctx, lots.CreateRequest{LotNumber: "LOT-1", ProductID: p, WarehouseID: w, Sqft: types.Qty(10)})
	require.NoError(t, err)

	moisture := 8.5
	lot, err = env.Lots.QCPass(ctx, lot.ID, &moisture, "")
	require.NoError(t, err)
	assert.Equal(t, lots.QCPassed, lot.QCStatus)
	assert.Equal(t, "QC Passed", lot.QCNotes)
	require.NotNil(t, lot.MoistureContent)
	assert.InDelta(t, 8.5, *lot.MoistureContent, 1e-9)

	lot, err = env.Lots.QCFail(ctx, lot.ID, []string{"cupping", "cracks"}, "")
	require.NoError(t, err)
	assert.Equal(t, lots.QCFailed, lot.QCStatus)
	assert.Equal(t, lots.StatusDamaged, lot.Status)
	assert.Equal(t, []string{"cupping", "cracks"}, lot.Defects)

	_, err = env.Lots.Reserve(ctx, lot.ID, types.Qty(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
}

func TestList_FiltersAndSummary(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	for _, req := range []lots.CreateRequest{
		{LotNumber: "LOT-1", Shade: "honey", Sqft: types.Qty(10), LandedCostPerSqft: types.MustMoney("2")},
		{LotNumber: "LOT-2", Shade: "honey", Sqft: types.Qty(20), LandedCostPerSqft: types.MustMoney("4")},
		{LotNumber: "LOT-3", Shade: "walnut", Sqft: types.Qty(30), LandedCostPerSqft: types.MustMoney("6")},
	} {
		req.ProductID, req.WarehouseID = p, w
		_, err := env.Lots.Create(ctx, req)
		require.NoError(t, err)
	}

	all, err := env.Lots.List(ctx, lots.Filter{WarehouseID: &w})
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.TotalCount)
	assert.Equal(t, "LOT-3", all.Items[0].LotNumber)
	assert.Equal(t, types.Qty(60), all.Summary.TotalSqft)
	assert.Equal(t, 2, all.Summary.UniqueShades)
	assert.True(t, types.MustMoney("4").Equal(all.Summary.AvgCostPerSqft))
	assert.Equal(t, 3, all.Summary.Aging.Under30)

	honey, err := env.Lots.List(ctx, lots.Filter{Shade: "honey"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, honey.TotalCount)

	found, err := env.Lots.List(ctx, lots.Filter{Search: "lot-2"})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "LOT-2", found.Items[0].LotNumber)
}
