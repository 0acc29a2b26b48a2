package transfer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/transfer"
	"stockledger/internal/domain/ledger"
)

type fixture struct {
	env      *apptest.Env
	from, to id.ID
	oak      id.ID
}

func newFixture(t *testing.T) *fixture {
	env := apptest.New(t)
	f := &fixture{
		env:  env,
		from: env.Warehouse(t, "MAIN"),
		to:   env.Warehouse(t, "SHOWROOM"),
		oak:  env.Product(t, "OAK-01"),
	}
	env.Receive(t, f.oak, f.from, 100, "10")
	env.Receive(t, f.oak, f.from, 100, "20")
	return f
}

func (f *fixture) dispatched(t *testing.T, qty int64) *transfer.Transfer {
	ctx := context.Background()
	doc, err := f.env.Transfers.Create(ctx, transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   f.to,
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(qty)}},
	})
	require.NoError(t, err)
	_, err = f.env.Transfers.Approve(ctx, doc.ID, "")
	require.NoError(t, err)
	doc, err = f.env.Transfers.Dispatch(ctx, doc.ID, "truck 4")
	require.NoError(t, err)
	return doc
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.env.Transfers.Create(ctx, transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   f.to,
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(40)}},
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusDraft, doc.Status)
	assert.True(t, types.MustMoney("15").Equal(doc.Items[0].UnitCost))
	assert.True(t, types.MustMoney("600").Equal(doc.TotalValue))
	assert.Equal(t, types.Qty(200), f.env.Balance(t, f.oak, f.from).Quantity, "a draft moves nothing")
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.env.Transfers.Create(ctx, transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   f.from,
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(1)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.env.Transfers.Create(ctx, transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   f.to,
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(201)}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	_, err = f.env.Transfers.Create(ctx, transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   id.New(),
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(1)}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestDispatchAndReceiveInParts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.dispatched(t, 40)
	assert.Equal(t, transfer.StatusInTransit, doc.Status)
	assert.NotNil(t, doc.DispatchedAt)
	assert.Equal(t, types.Qty(160), f.env.Balance(t, f.oak, f.from).Quantity)

	doc, err := f.env.Transfers.Receive(ctx, doc.ID, []transfer.ReceivedItem{{ProductID: f.oak, Quantity: types.Qty(25)}}, "")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPartialReceived, doc.Status)
	assert.Equal(t, types.Qty(25), doc.ReceivedQuantity)

	dest := f.env.Balance(t, f.oak, f.to)
	assert.Equal(t, types.Qty(25), dest.Quantity)
	assert.True(t, types.MustMoney("15").Equal(dest.AvgCostPrice), "the source cost travels with the stock")

	_, err = f.env.Transfers.Receive(ctx, doc.ID, []transfer.ReceivedItem{{ProductID: f.oak, Quantity: types.Qty(16)}}, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeTransferQuantity))
	assert.Equal(t, types.Qty(25), f.env.Balance(t, f.oak, f.to).Quantity)

	doc, err = f.env.Transfers.Receive(ctx, doc.ID, []transfer.ReceivedItem{{ProductID: f.oak, Quantity: types.Qty(15)}}, "")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusReceived, doc.Status)
	assert.Equal(t, types.Qty(40), f.env.Balance(t, f.oak, f.to).Quantity)

	doc, err = f.env.Transfers.Complete(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCompleted, doc.Status)

	_, err = f.env.Transfers.Cancel(ctx, doc.ID, "too late")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))

	moves, err := f.env.Ledger.ListMovements(ctx, ledger.MovementFilter{ReferenceID: &doc.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, moves.TotalCount, "one out and two in")
}

func TestDispatch_RequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc, err := f.env.Transfers.Create(ctx, transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   f.to,
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(5)}},
	})
	require.NoError(t, err)

	_, err = f.env.Transfers.Dispatch(ctx, doc.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
	_, err = f.env.Transfers.Receive(ctx, doc.ID, []transfer.ReceivedItem{{ProductID: f.oak, Quantity: types.Qty(5)}}, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
}

func TestCancel_ReturnsOutstandingToSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := f.dispatched(t, 40)
	_, err := f.env.Transfers.Receive(ctx, doc.ID, []transfer.ReceivedItem{{ProductID: f.oak, Quantity: types.Qty(10)}}, "")
	require.NoError(t, err)

	doc, err = f.env.Transfers.Cancel(ctx, doc.ID, "damaged truck")
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCancelled, doc.Status)
	assert.Equal(t, "damaged truck", doc.CancellationReason)

	assert.Equal(t, types.Qty(190), f.env.Balance(t, f.oak, f.from).Quantity)
	assert.Equal(t, types.Qty(10), f.env.Balance(t, f.oak, f.to).Quantity)
}

func TestCancelDraftAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := transfer.CreateRequest{
		FromWarehouseID: f.from,
		ToWarehouseID:   f.to,
		Items:           []transfer.ItemRequest{{ProductID: f.oak, Quantity: types.Qty(5)}},
	}
	first, err := f.env.Transfers.Create(ctx, req)
	require.NoError(t, err)
	second, err := f.env.Transfers.Create(ctx, req)
	require.NoError(t, err)

	_, err = f.env.Transfers.Cancel(ctx, first.ID, "")
	require.NoError(t, err)
	assert.Equal(t, types.Qty(200), f.env.Balance(t, f.oak, f.from).Quantity)

	require.NoError(t, f.env.Transfers.Delete(ctx, second.ID))
	_, err = f.env.Transfers.GetByID(ctx, second.ID)
	assert.True(t, apperror.IsNotFound(err))

	list, err := f.env.Transfers.List(ctx, transfer.ListFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
}
