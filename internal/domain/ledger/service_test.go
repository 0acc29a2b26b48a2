package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/batches"
	"stockledger/internal/domain/ledger"
)

func record(t *testing.T, env *apptest.Env, mt ledger.MovementType, p, w id.ID, qty int64) (*ledger.Result, error) {
	t.Helper()
	return env.Ledger.RecordMovement(context.Background(), ledger.RecordRequest{
		Type:        mt,
		ProductID:   p,
		WarehouseID: w,
		Quantity:    types.Qty(qty),
	})
}

func TestRecordMovement_WeightedAverageCost(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	env.Receive(t, p, w, 100, "10")
	res := env.Receive(t, p, w, 100, "20")

	assert.Equal(t, types.Qty(200), res.Balance.Quantity)
	assert.True(t, types.MustMoney("15").Equal(res.Balance.AvgCostPrice), "avg = %s", res.Balance.AvgCostPrice)
	assert.True(t, types.MustMoney("20").Equal(res.Balance.LastCostPrice))
	assert.True(t, types.MustMoney("2000").Equal(res.Movement.TotalCost))
}

func TestRecordMovement_OutwardValuedAtAverage(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 10, "12.5")

	res, err := record(t, env, ledger.MovementGoodsIssue, p, w, 4)
	require.NoError(t, err)

	assert.Equal(t, types.Qty(-4), res.Movement.QuantityChange)
	assert.Equal(t, types.Qty(10), res.Movement.StockBefore)
	assert.Equal(t, types.Qty(6), res.Movement.StockAfter)
	assert.True(t, types.MustMoney("12.5").Equal(res.Movement.UnitCost))
	assert.True(t, types.MustMoney("12.5").Equal(res.Balance.AvgCostPrice))
}

func TestRecordMovement_InsufficientStockLeavesBalanceUntouched(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 10, "5")

	_, err := record(t, env, ledger.MovementDamage, p, w, 11)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	bal := env.Balance(t, p, w)
	assert.Equal(t, types.Qty(10), bal.Quantity)

	list, err := env.Ledger.ListMovements(context.Background(), ledger.MovementFilter{ProductID: &p})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
}

func TestRecordMovement_ReserveAndReleaseRestoreAvailable(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 50, "5")

	res, err := record(t, env, ledger.MovementReservation, p, w, 20)
	require.NoError(t, err)
	assert.Equal(t, types.Qty(50), res.Balance.Quantity)
	assert.Equal(t, types.Qty(20), res.Balance.ReservedQty)
	assert.Equal(t, types.Qty(30), res.Balance.AvailableQty())
	assert.Zero(t, res.Movement.QuantityChange)

	res, err = record(t, env, ledger.MovementRelease, p, w, 20)
	require.NoError(t, err)
	assert.Equal(t, types.Qty(50), res.Balance.Quantity)
	assert.Zero(t, res.Balance.ReservedQty)
	assert.Equal(t, types.Qty(50), res.Balance.AvailableQty())
}

func TestRecordMovement_ReservationLimits(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 10, "5")

	_, err := record(t, env, ledger.MovementReservation, p, w, 11)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientAvailableStock))

	_, err = record(t, env, ledger.MovementReservation, p, w, 6)
	require.NoError(t, err)

	_, err = record(t, env, ledger.MovementRelease, p, w, 7)
	assert.True(t, apperror.HasCode(err, apperror.CodeOverRelease))

	bal := env.Balance(t, p, w)
	assert.Equal(t, types.Qty(6), bal.ReservedQty)
}

func TestRecordMovement_OutwardClampsReserved(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 10, "5")

	_, err := record(t, env, ledger.MovementReservation, p, w, 8)
	require.NoError(t, err)
	res, err := record(t, env, ledger.MovementGoodsIssue, p, w, 5)
	require.NoError(t, err)

	assert.Equal(t, types.Qty(5), res.Balance.Quantity)
	assert.Equal(t, types.Qty(5), res.Balance.ReservedQty)
	assert.Equal(t, types.Qty(8), res.Movement.ReservedBefore)
	assert.Equal(t, types.Qty(5), res.Movement.ReservedAfter)
}

func TestRecordMovement_AvailableNeverNegative(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	steps := []struct {
		mt  ledger.MovementType
		qty int64
	}{
		{ledger.MovementGoodsReceipt, 40},
		{ledger.MovementReservation, 30},
		{ledger.MovementGoodsIssue, 25},
		{ledger.MovementReservation, 20},
		{ledger.MovementReturnIn, 12},
		{ledger.MovementReservation, 7},
		{ledger.MovementRelease, 9},
		{ledger.MovementAdjustmentMinus, 20},
		{ledger.MovementGoodsIssue, 1},
		{ledger.MovementRelease, 100},
	}
	for i, st := range steps {
		_, _ = record(t, env, st.mt, p, w, st.qty)

		bal := env.Balance(t, p, w)
		assert.GreaterOrEqual(t, int64(bal.Quantity), int64(0), "step %d", i)
		assert.GreaterOrEqual(t, int64(bal.ReservedQty), int64(0), "step %d", i)
		assert.LessOrEqual(t, int64(bal.ReservedQty), int64(bal.Quantity), "step %d", i)
	}
}

func TestRecordMovement_IdempotencyKey(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	cost := types.MustMoney("8")

	req := ledger.RecordRequest{
		Type:           ledger.MovementGoodsReceipt,
		ProductID:      p,
		WarehouseID:    w,
		Quantity:       types.Qty(30),
		UnitCost:       &cost,
		IdempotencyKey: "receipt-42",
	}
	first, err := env.Ledger.RecordMovement(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := env.Ledger.RecordMovement(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assert.Equal(t, types.Qty(30), env.Balance(t, p, w).Quantity)

	req.Quantity = types.Qty(31)
	_, err = env.Ledger.RecordMovement(ctx, req)
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotencyMismatch))
}

func TestRecordMovement_Validation(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	_, err := record(t, env, ledger.MovementType("teleport"), p, w, 1)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = record(t, env, ledger.MovementGoodsReceipt, p, w, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = record(t, env, ledger.MovementGoodsReceipt, id.New(), w, 1)
	assert.True(t, apperror.IsNotFound(err))

	_, err = record(t, env, ledger.MovementGoodsReceipt, p, id.New(), 1)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReplay_FoldMatchesBalance(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	env.Receive(t, p, w, 100, "10")
	for _, mt := range []ledger.MovementType{
		ledger.MovementGoodsIssue, ledger.MovementReservation, ledger.MovementTransferOut,
		ledger.MovementRelease, ledger.MovementAdjustmentPlus,
	} {
		_, err := record(t, env, mt, p, w, 7)
		require.NoError(t, err)
	}

	report, err := env.Ledger.Replay(ctx, p, w)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 6, report.MovementCount)
	assert.Equal(t, report.StoredQuantity, report.FoldedQuantity)
	assert.Equal(t, types.Qty(93), report.FoldedQuantity)
	assert.Empty(t, report.BrokenChainAt)
}

func TestRecordMovement_BatchesConsumedFIFO(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	for i, number := range []string{"B-OLD", "B-NEW"} {
		cost := types.MustMoney("4")
		_, err := env.Ledger.RecordMovement(ctx, ledger.RecordRequest{
			Type:        ledger.MovementGoodsReceipt,
			ProductID:   p,
			WarehouseID: w,
			Quantity:    types.Qty(10),
			UnitCost:    &cost,
			Batch:       &ledger.BatchInfo{BatchNumber: number},
		})
		require.NoError(t, err, "batch %d", i)
		env.Now = env.Now.Add(time.Hour)
	}

	res, err := record(t, env, ledger.MovementGoodsIssue, p, w, 15)
	require.NoError(t, err)
	assert.Zero(t, res.BatchShortfall)

	list, err := env.Ledger.ListBatches(ctx, batches.Filter{ProductID: &p, WarehouseID: &w})
	require.NoError(t, err)
	require.Len(t, list, 2)

	byNumber := map[string]*batches.Batch{}
	for _, b := range list {
		byNumber[b.BatchNumber] = b
	}
	assert.Equal(t, types.Qty(0), byNumber["B-OLD"].Quantity)
	assert.Equal(t, batches.StatusExhausted, byNumber["B-OLD"].Status)
	assert.Equal(t, types.Qty(5), byNumber["B-NEW"].Quantity)
	assert.Equal(t, batches.StatusActive, byNumber["B-NEW"].Status)
}

func TestRecordMovement_BatchShortfallIsReported(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	cost := types.MustMoney("4")
	_, err := env.Ledger.RecordMovement(ctx, ledger.RecordRequest{
		Type: ledger.MovementGoodsReceipt, ProductID: p, WarehouseID: w,
		Quantity: types.Qty(5), UnitCost: &cost,
		Batch: &ledger.BatchInfo{BatchNumber: "B-1"},
	})
	require.NoError(t, err)
	env.Receive(t, p, w, 10, "4")

	res, err := record(t, env, ledger.MovementGoodsIssue, p, w, 8)
	require.NoError(t, err)
	assert.Equal(t, types.Qty(3), res.BatchShortfall)
	assert.Equal(t, types.Qty(7), res.Balance.Quantity)
}

func TestRecordMovement_PublishesEvent(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 3, "1")

	pending, err := env.Repos.Outbox.FetchPending(context.Background(), env.Now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventMovementRecorded, pending[0].EventType)
	assert.Contains(t, string(pending[0].Payload), `"movementType":"goods_receipt"`)
}

func TestReconcile_SetsCountedQuantity(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 100, "2")

	for _, tc := range []struct {
		counted int64
		want    ledger.MovementType
	}{
		{97, ledger.MovementAdjustmentMinus},
		{105, ledger.MovementAdjustmentPlus},
	} {
		t.Run(fmt.Sprint(tc.counted), func(t *testing.T) {
			res, err := env.Ledger.Reconcile(ctx, ledger.ReconcileRequest{
				ProductID:       p,
				WarehouseID:     w,
				CountedQuantity: types.Qty(tc.counted),
			})
			require.NoError(t, err)
			require.NotNil(t, res.Movement)
			assert.Equal(t, tc.want, res.Movement.Type)
			assert.Equal(t, types.Qty(tc.counted), res.Balance.Quantity)
		})
	}

	res, err := env.Ledger.Reconcile(ctx, ledger.ReconcileRequest{ProductID: p, WarehouseID: w, CountedQuantity: types.Qty(105)})
	require.NoError(t, err)
	assert.Nil(t, res.Movement)
}

func TestRecordMovement_ConcurrentSameBalance(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 100, "10")

	const workers = 100
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := record(t, env, ledger.MovementGoodsReceipt, p, w, 2); err != nil {
				errs <- err
			}
			if _, err := record(t, env, ledger.MovementGoodsIssue, p, w, 1); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	bal := env.Balance(t, p, w)
	assert.Equal(t, types.Qty(100+workers), bal.Quantity)

	report, err := env.Ledger.Replay(ctx, p, w)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, 1+2*workers, report.MovementCount)
	assert.Equal(t, bal.Quantity, report.FoldedQuantity)
	assert.Empty(t, report.BrokenChainAt)
}

func TestRecordMovement_QuantityOverflowRejected(t *testing.T) {
	env := apptest.New(t)
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	_, err := record(t, env, ledger.MovementAdjustmentPlus, p, w, 900_000_000_000_000)
	require.NoError(t, err)

	_, err = record(t, env, ledger.MovementAdjustmentPlus, p, w, 900_000_000_000_000)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	bal := env.Balance(t, p, w)
	assert.Equal(t, types.Qty(900_000_000_000_000), bal.Quantity)
	assert.True(t, bal.Quantity.IsPositive())
}

func TestReleaseHeld_ClampsToReservedBalance(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	env.Receive(t, p, w, 100, "5")
	_, err := record(t, env, ledger.MovementReservation, p, w, 80)
	require.NoError(t, err)
	_, err = record(t, env, ledger.MovementDamage, p, w, 50)
	require.NoError(t, err)

	req := ledger.RecordRequest{Type: ledger.MovementRelease, ProductID: p, WarehouseID: w, Quantity: types.Qty(80)}
	res, err := env.Ledger.ReleaseHeld(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res.Movement)
	assert.Equal(t, types.Qty(50), res.Movement.Quantity)
	assert.Zero(t, res.Balance.ReservedQty)

	res, err = env.Ledger.ReleaseHeld(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, res.Movement)
	assert.Equal(t, types.Qty(50), res.Balance.Quantity)

	req.Type = ledger.MovementGoodsIssue
	_, err = env.Ledger.ReleaseHeld(ctx, req)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
