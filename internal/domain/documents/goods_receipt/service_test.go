package goods_receipt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/lots"
)

func money(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

func TestCreate_TotalsAndNumbering(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p := env.Product(t, "OAK-01", func(p *product.Product) { p.CostPrice = types.MustMoney("7") })
	w := env.Warehouse(t, "MAIN")

	doc, err := env.GoodsReceipts.Create(ctx, goods_receipt.CreateRequest{
		WarehouseID:   w,
		InvoiceNumber: "INV-9",
		Items: []goods_receipt.ItemRequest{
			{ProductID: p, Quantity: types.Qty(10), UnitCost: money("2.5")},
			{ProductID: p, Quantity: types.Qty(4)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "GRN-2026-00001", doc.Number)
	assert.Equal(t, goods_receipt.StatusDraft, doc.Status)
	assert.Equal(t, types.Qty(14), doc.TotalQuantity)
	assert.True(t, types.MustMoney("53").Equal(doc.TotalValue), "total = %s", doc.TotalValue)
	assert.True(t, types.MustMoney("7").Equal(doc.Items[1].UnitCost))

	_, err = env.Ledger.GetBalance(ctx, p, w)
	assert.True(t, apperror.IsNotFound(err), "a draft does not touch stock")
}

func TestCreate_Validation(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	_, err := env.GoodsReceipts.Create(ctx, goods_receipt.CreateRequest{WarehouseID: w})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = env.GoodsReceipts.Create(ctx, goods_receipt.CreateRequest{
		WarehouseID: w,
		Items:       []goods_receipt.ItemRequest{{ProductID: p, Quantity: 0}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = env.GoodsReceipts.Create(ctx, goods_receipt.CreateRequest{
		WarehouseID: w,
		Items:       []goods_receipt.ItemRequest{{ProductID: id.New(), Quantity: types.Qty(1)}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestReceive_PostsOnce(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")

	doc, err := env.GoodsReceipts.Create(ctx, goods_receipt.CreateRequest{
		WarehouseID: w,
		Items: []goods_receipt.ItemRequest{
			{ProductID: p, Quantity: types.Qty(100), UnitCost: money("10"), BatchNumber: "B-1"},
			{ProductID: p, Quantity: types.Qty(50), UnitCost: money("16"), LotNumber: "LOT-7"},
		},
	})
	require.NoError(t, err)

	received, err := env.GoodsReceipts.Receive(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, goods_receipt.StatusReceived, received.Status)
	require.NotNil(t, received.ReceivedAt)
	for _, line := range received.Items {
		assert.NotNil(t, line.MovementID, "line %d", line.LineNo)
	}

	_, err = env.GoodsReceipts.Receive(ctx, doc.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))

	bal := env.Balance(t, p, w)
	assert.Equal(t, types.Qty(150), bal.Quantity)
	assert.True(t, types.MustMoney("12").Equal(bal.AvgCostPrice), "avg = %s", bal.AvgCostPrice)

	moves, err := env.Ledger.ListMovements(ctx, ledger.MovementFilter{ReferenceID: &doc.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, moves.TotalCount)

	lotList, err := env.Lots.List(ctx, lots.Filter{Search: "LOT-7"})
	require.NoError(t, err)
	require.Len(t, lotList.Items, 1)
	assert.Equal(t, types.Qty(50), lotList.Items[0].Sqft)
	assert.Equal(t, doc.ID, *lotList.Items[0].GRNID)

	stored, err := env.GoodsReceipts.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, goods_receipt.StatusReceived, stored.Status)
	assert.Len(t, stored.Items, 2)
}

func TestReceive_RollsBackOnFailure(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	other := env.Product(t, "OAK-02")

	doc, err := env.GoodsReceipts.Create(ctx, goods_receipt.CreateRequest{
		WarehouseID: w,
		Items: []goods_receipt.ItemRequest{
			{ProductID: p, Quantity: types.Qty(5), UnitCost: money("1")},
			{ProductID: other, Quantity: types.Qty(5), UnitCost: money("1")},
		},
	})
	require.NoError(t, err)

	// Deactivating the second product makes its line fail after the first was posted.
	stored, err := env.Repos.Products.GetByID(ctx, other)
	require.NoError(t, err)
	stored.IsActive = false
	require.NoError(t, env.Repos.Products.Update(ctx, stored))

	_, err = env.GoodsReceipts.Receive(ctx, doc.ID)
	require.Error(t, err)

	_, err = env.Ledger.GetBalance(ctx, p, w)
	assert.True(t, apperror.IsNotFound(err))
	again, err := env.GoodsReceipts.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, goods_receipt.StatusDraft, again.Status)
}

func TestCancelAndDelete(t *testing.T) {
	env := apptest.New(t)
	ctx := context.Background()
	p, w := env.Product(t, "OAK-01"), env.Warehouse(t, "MAIN")
	req := goods_receipt.CreateRequest{
		WarehouseID: w,
		Items:       []goods_receipt.ItemRequest{{ProductID: p, Quantity: types.Qty(1), UnitCost: money("1")}},
	}

	first, err := env.GoodsReceipts.Create(ctx, req)
	require.NoError(t, err)
	cancelled, err := env.GoodsReceipts.Cancel(ctx, first.ID, "vendor no-show")
	require.NoError(t, err)
	assert.Equal(t, goods_receipt.StatusCancelled, cancelled.Status)
	_, err = env.GoodsReceipts.Receive(ctx, first.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
	assert.True(t, apperror.HasCode(env.GoodsReceipts.Delete(ctx, first.ID), apperror.CodeInvalidStatus))

	second, err := env.GoodsReceipts.Create(ctx, req)
	require.NoError(t, err)
	require.NoError(t, env.GoodsReceipts.Delete(ctx, second.ID))
	_, err = env.GoodsReceipts.GetByID(ctx, second.ID)
	assert.True(t, apperror.IsNotFound(err))

	list, err := env.GoodsReceipts.List(ctx, goods_receipt.ListFilter{WarehouseID: &w})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
	assert.Equal(t, 1, list.Summary.Cancelled)
}
