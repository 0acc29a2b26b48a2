package cycle_count_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/domain/ledger"
)

type fixture struct {
	env       *apptest.Env
	warehouse id.ID
	tiles     id.ID
	grout     id.ID
}

func newFixture(t *testing.T) *fixture {
	env := apptest.New(t)
	f := &fixture{
		env:       env,
		warehouse: env.Warehouse(t, "MAIN"),
		tiles:     env.Product(t, "TILE-01"),
		grout:     env.Product(t, "GROUT-01"),
	}
	env.Receive(t, f.tiles, f.warehouse, 100, "10")
	env.Receive(t, f.grout, f.warehouse, 50, "4")
	return f
}

// counted creates, starts and fully counts a cycle count.
func (f *fixture) counted(t *testing.T, tiles, grout int64) *cycle_count.CycleCount {
	ctx := context.Background()
	doc, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: f.warehouse})
	require.NoError(t, err)
	_, err = f.env.CycleCounts.Start(ctx, doc.ID)
	require.NoError(t, err)
	doc, err = f.env.CycleCounts.RecordCounts(ctx, doc.ID, []cycle_count.CountEntry{
		{ProductID: f.tiles, CountedQuantity: types.Qty(tiles)},
		{ProductID: f.grout, CountedQuantity: types.Qty(grout), Notes: "found a pallet"},
	})
	require.NoError(t, err)
	return doc
}

func item(t *testing.T, doc *cycle_count.CycleCount, productID id.ID) cycle_count.Item {
	t.Helper()
	for _, it := range doc.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("product %s not in count %s", productID, doc.Number)
	return cycle_count.Item{}
}

func TestCreate_SnapshotsBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: f.warehouse})
	require.NoError(t, err)

	assert.Equal(t, cycle_count.StatusDraft, doc.Status)
	assert.Equal(t, cycle_count.CountFull, doc.CountType)
	assert.Equal(t, 2, doc.TotalItems)
	assert.Equal(t, 0, doc.CountedItems)
	assert.Equal(t, types.Qty(150), doc.TotalSystemQty)
	assert.Equal(t, types.Qty(100), item(t, doc, f.tiles).SystemQuantity)
	assert.True(t, types.MustMoney("10").Equal(item(t, doc, f.tiles).AvgCostPrice))
}

func TestCreate_NarrowedAndEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{
		WarehouseID: f.warehouse,
		CountType:   cycle_count.CountPartial,
		ProductIDs:  []id.ID{f.grout, f.grout, id.New()},
	})
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, f.grout, doc.Items[0].ProductID)

	empty := f.env.Warehouse(t, "EMPTY")
	_, err = f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: empty})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: id.New()})
	assert.True(t, apperror.IsNotFound(err))
}

func TestRecordCounts_Variances(t *testing.T) {
	f := newFixture(t)

	doc := f.counted(t, 97, 55)

	tiles := item(t, doc, f.tiles)
	assert.Equal(t, types.Qty(-3), tiles.Variance)
	assert.True(t, types.MustMoney("-30").Equal(tiles.VarianceValue), "tiles value = %s", tiles.VarianceValue)

	grout := item(t, doc, f.grout)
	assert.Equal(t, types.Qty(5), grout.Variance)
	assert.True(t, types.MustMoney("20").Equal(grout.VarianceValue), "grout value = %s", grout.VarianceValue)
	assert.Equal(t, "found a pallet", grout.Notes)

	assert.Equal(t, 2, doc.CountedItems)
	assert.Equal(t, types.Qty(2), doc.TotalVariance)
	assert.True(t, types.MustMoney("-10").Equal(doc.TotalVarianceValue))
}

func TestRecordCounts_RequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: f.warehouse})
	require.NoError(t, err)

	_, err = f.env.CycleCounts.RecordCounts(ctx, doc.ID, []cycle_count.CountEntry{
		{ProductID: f.tiles, CountedQuantity: types.Qty(1)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))

	_, err = f.env.CycleCounts.Start(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.env.CycleCounts.RecordCounts(ctx, doc.ID, []cycle_count.CountEntry{
		{ProductID: f.tiles, CountedQuantity: types.Qty(-1)},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestSubmit_RequiresEveryItemCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: f.warehouse})
	require.NoError(t, err)
	_, err = f.env.CycleCounts.Start(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.env.CycleCounts.RecordCounts(ctx, doc.ID, []cycle_count.CountEntry{
		{ProductID: f.tiles, CountedQuantity: types.Qty(100)},
	})
	require.NoError(t, err)

	_, err = f.env.CycleCounts.SubmitForApproval(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeIncompleteCount))
}

func TestApplyAdjustments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.counted(t, 97, 55)

	_, err := f.env.CycleCounts.ApplyAdjustments(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus), "apply needs approval")

	_, err = f.env.CycleCounts.SubmitForApproval(ctx, doc.ID)
	require.NoError(t, err)
	approved, err := f.env.CycleCounts.Approve(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.NotNil(t, approved.ApprovedAt)

	done, err := f.env.CycleCounts.ApplyAdjustments(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle_count.StatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.True(t, done.AllApplied())

	assert.Equal(t, types.Qty(97), f.env.Balance(t, f.tiles, f.warehouse).Quantity)
	assert.Equal(t, types.Qty(55), f.env.Balance(t, f.grout, f.warehouse).Quantity)
	for _, it := range done.Items {
		assert.NotNil(t, it.AppliedMovementID)
		assert.Zero(t, it.SnapshotDrift)
	}

	moves := f.adjustments(t, doc.ID)
	require.Len(t, moves, 2)
	tiles, grout := moves[f.tiles], moves[f.grout]
	require.NotNil(t, tiles)
	require.NotNil(t, grout)
	assert.Equal(t, ledger.MovementAdjustmentMinus, tiles.Type)
	assert.Equal(t, types.Qty(3), tiles.Quantity)
	assert.Equal(t, types.Qty(-3), tiles.QuantityChange)
	assert.Equal(t, ledger.MovementAdjustmentPlus, grout.Type)
	assert.Equal(t, types.Qty(5), grout.Quantity)
	assert.Equal(t, types.Qty(5), grout.QuantityChange)
	assert.Equal(t, *item(t, done, f.tiles).AppliedMovementID, tiles.ID)

	_, err = f.env.CycleCounts.ApplyAdjustments(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
	assert.Equal(t, types.Qty(97), f.env.Balance(t, f.tiles, f.warehouse).Quantity)
}

// adjustments returns the movements posted for a count, keyed by product.
func (f *fixture) adjustments(t *testing.T, docID id.ID) map[id.ID]*ledger.Movement {
	t.Helper()
	list, err := f.env.Ledger.ListMovements(context.Background(), ledger.MovementFilter{
		ReferenceType: ledger.RefCycleCount,
		ReferenceID:   &docID,
	})
	require.NoError(t, err)
	out := make(map[id.ID]*ledger.Movement, len(list.Items))
	for _, m := range list.Items {
		require.Nil(t, out[m.ProductID], "product %s adjusted twice", m.ProductID)
		out[m.ProductID] = m
	}
	return out
}

func (f *fixture) setActive(t *testing.T, productID id.ID, active bool) {
	t.Helper()
	ctx := context.Background()
	p, err := f.env.Repos.Products.GetByID(ctx, productID)
	require.NoError(t, err)
	p.IsActive = active
	require.NoError(t, f.env.Repos.Products.Update(ctx, p))
}

func TestApplyAdjustments_ResumesAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.counted(t, 97, 55)
	_, err := f.env.CycleCounts.SubmitForApproval(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.env.CycleCounts.Approve(ctx, doc.ID, "")
	require.NoError(t, err)

	require.Len(t, doc.Items, 2)
	first, second := doc.Items[0].ProductID, doc.Items[1].ProductID
	want := map[id.ID]types.Quantity{f.tiles: types.Qty(97), f.grout: types.Qty(55)}

	// The ledger rejects movements for an inactive product.
	f.setActive(t, second, false)
	_, err = f.env.CycleCounts.ApplyAdjustments(ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	got, err := f.env.CycleCounts.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle_count.StatusApproved, got.Status)
	assert.True(t, item(t, got, first).Applied)
	assert.False(t, item(t, got, second).Applied)
	assert.Equal(t, want[first], f.env.Balance(t, first, f.warehouse).Quantity)
	assert.Len(t, f.adjustments(t, doc.ID), 1)

	f.setActive(t, second, true)
	done, err := f.env.CycleCounts.ApplyAdjustments(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle_count.StatusCompleted, done.Status)
	assert.True(t, done.AllApplied())

	assert.Equal(t, want[first], f.env.Balance(t, first, f.warehouse).Quantity)
	assert.Equal(t, want[second], f.env.Balance(t, second, f.warehouse).Quantity)
	assert.Len(t, f.adjustments(t, doc.ID), 2)
}

func TestCancel_RejectedOnceApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.counted(t, 97, 55)
	_, err := f.env.CycleCounts.SubmitForApproval(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.env.CycleCounts.Approve(ctx, doc.ID, "")
	require.NoError(t, err)

	_, err = f.env.CycleCounts.Cancel(ctx, doc.ID, "too late")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))

	got, err := f.env.CycleCounts.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, cycle_count.StatusApproved, got.Status)
}

func TestApplyAdjustments_SnapshotDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.counted(t, 97, 50)
	_, err := f.env.CycleCounts.SubmitForApproval(ctx, doc.ID)
	require.NoError(t, err)
	_, err = f.env.CycleCounts.Approve(ctx, doc.ID, "ok")
	require.NoError(t, err)

	// A delivery lands between the count and the apply.
	f.env.Receive(t, f.tiles, f.warehouse, 10, "10")

	done, err := f.env.CycleCounts.ApplyAdjustments(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, types.Qty(97), f.env.Balance(t, f.tiles, f.warehouse).Quantity)
	assert.Equal(t, types.Qty(10), item(t, done, f.tiles).SnapshotDrift)

	grout := item(t, done, f.grout)
	assert.True(t, grout.Applied)
	assert.Nil(t, grout.AppliedMovementID, "no movement when the count matches")
	assert.Equal(t, types.Qty(50), f.env.Balance(t, f.grout, f.warehouse).Quantity)
}

func TestCancelAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: f.warehouse})
	require.NoError(t, err)
	second, err := f.env.CycleCounts.Create(ctx, cycle_count.CreateRequest{WarehouseID: f.warehouse})
	require.NoError(t, err)

	cancelled, err := f.env.CycleCounts.Cancel(ctx, first.ID, "recount next week")
	require.NoError(t, err)
	assert.Equal(t, cycle_count.StatusCancelled, cancelled.Status)

	assert.True(t, apperror.HasCode(f.env.CycleCounts.Delete(ctx, first.ID), apperror.CodeInvalidStatus))
	require.NoError(t, f.env.CycleCounts.Delete(ctx, second.ID))
	_, err = f.env.CycleCounts.GetByID(ctx, second.ID)
	assert.True(t, apperror.IsNotFound(err))

	list, err := f.env.CycleCounts.List(ctx, cycle_count.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
}
