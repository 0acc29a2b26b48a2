package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app/apptest"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/ledger"
)

type fixture struct {
	env       *apptest.Env
	product   id.ID
	warehouse id.ID
}

func newFixture(t *testing.T) *fixture {
	env := apptest.New(t)
	f := &fixture{env: env, product: env.Product(t, "OAK-01"), warehouse: env.Warehouse(t, "MAIN")}
	env.Receive(t, f.product, f.warehouse, 100, "10")
	return f
}

func (f *fixture) reserve(t *testing.T, qty int64) *reservation.Reservation {
	r, err := f.env.Reservations.Create(context.Background(), reservation.CreateRequest{
		ProductID:    f.product,
		WarehouseID:  f.warehouse,
		Quantity:     types.Qty(qty),
		UnitPrice:    types.MustMoney("25"),
		RefType:      "quote",
		RefNumber:    "Q-118",
		CustomerName: "Harbor Homes",
	})
	require.NoError(t, err)
	return r
}

func TestCreate_HoldsStock(t *testing.T) {
	f := newFixture(t)

	r := f.reserve(t, 30)

	assert.Equal(t, reservation.StatusActive, r.Status)
	assert.Equal(t, "RS-2026-00001", r.Number)
	assert.Equal(t, types.Qty(30), r.ReservedQty)
	assert.True(t, types.MustMoney("750").Equal(r.ReservedValue))
	assert.Equal(t, types.Qty(100), r.StockAtReservation)
	assert.Equal(t, types.Qty(100), r.AvailableAtReservation)
	assert.Equal(t, f.env.Now.Add(reservation.DefaultExpiry), r.ExpiresAt)

	bal := f.env.Balance(t, f.product, f.warehouse)
	assert.Equal(t, types.Qty(100), bal.Quantity)
	assert.Equal(t, types.Qty(30), bal.ReservedQty)
	assert.Equal(t, types.Qty(70), bal.AvailableQty())
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reserve(t, 80)

	_, err := f.env.Reservations.Create(ctx, reservation.CreateRequest{
		ProductID: f.product, WarehouseID: f.warehouse, Quantity: types.Qty(21),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientAvailableStock))

	_, err = f.env.Reservations.Create(ctx, reservation.CreateRequest{
		ProductID: f.product, WarehouseID: f.warehouse, Quantity: types.Qty(0),
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	past := f.env.Now.Add(-time.Hour)
	_, err = f.env.Reservations.Create(ctx, reservation.CreateRequest{
		ProductID: f.product, WarehouseID: f.warehouse, Quantity: types.Qty(1), ExpiresAt: &past,
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	assert.Equal(t, types.Qty(80), f.env.Balance(t, f.product, f.warehouse).ReservedQty)
}

func TestCreate_IdempotencyKeyReturnsFirstReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := reservation.CreateRequest{
		ProductID:      f.product,
		WarehouseID:    f.warehouse,
		Quantity:       types.Qty(10),
		IdempotencyKey: "order-77",
	}

	first, err := f.env.Reservations.Create(ctx, req)
	require.NoError(t, err)
	second, err := f.env.Reservations.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, types.Qty(10), f.env.Balance(t, f.product, f.warehouse).ReservedQty)
}

func TestFulfillAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, 30)

	r, err := f.env.Reservations.Fulfill(ctx, r.ID, types.Qty(10), "first truck")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusActive, r.Status)
	assert.Equal(t, types.Qty(20), r.ReservedQty)
	assert.Equal(t, types.Qty(10), r.FulfilledQty)

	bal := f.env.Balance(t, f.product, f.warehouse)
	assert.Equal(t, types.Qty(90), bal.Quantity)
	assert.Equal(t, types.Qty(20), bal.ReservedQty)

	_, err = f.env.Reservations.Release(ctx, r.ID, types.Qty(21), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeOverRelease))

	r, err = f.env.Reservations.Release(ctx, r.ID, 0, "customer changed the order")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusReleased, r.Status)
	assert.Equal(t, types.Qty(20), r.ReleasedQty)
	assert.NotNil(t, r.ClosedAt)
	assert.Zero(t, f.env.Balance(t, f.product, f.warehouse).ReservedQty)

	_, err = f.env.Reservations.Fulfill(ctx, r.ID, 0, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStatus))
}

func TestFulfillEverything(t *testing.T) {
	f := newFixture(t)
	r := f.reserve(t, 30)

	r, err := f.env.Reservations.Fulfill(context.Background(), r.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusFulfilled, r.Status)

	bal := f.env.Balance(t, f.product, f.warehouse)
	assert.Equal(t, types.Qty(70), bal.Quantity)
	assert.Zero(t, bal.ReservedQty)
}

func TestCancelAndExtend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, 30)

	later := f.env.Now.Add(30 * 24 * time.Hour)
	r, err := f.env.Reservations.Extend(ctx, r.ID, later, "")
	require.NoError(t, err)
	assert.Equal(t, later, r.ExpiresAt)

	_, err = f.env.Reservations.Extend(ctx, r.ID, f.env.Now.Add(-time.Minute), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	r, err = f.env.Reservations.Cancel(ctx, r.ID, "quote lost")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, r.Status)
	assert.Zero(t, f.env.Balance(t, f.product, f.warehouse).ReservedQty)
}

func TestExpireDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soon := f.reserve(t, 10)
	late := f.reserve(t, 20)
	_, err := f.env.Reservations.Extend(ctx, late.ID, f.env.Now.Add(30*24*time.Hour), "")
	require.NoError(t, err)

	_, err = f.env.Reservations.Expire(ctx, soon.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule), "not expired yet")

	f.env.Now = f.env.Now.Add(reservation.DefaultExpiry + time.Minute)
	n, err := f.env.Reservations.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.env.Reservations.Get(ctx, soon.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, got.Status)
	assert.Equal(t, types.Qty(10), got.ReleasedQty)
	assert.Equal(t, types.Qty(20), f.env.Balance(t, f.product, f.warehouse).ReservedQty)

	n, err = f.env.Reservations.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := f.env.Reservations.List(ctx, reservation.ListFilter{Status: reservation.StatusActive})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)
	assert.Equal(t, late.ID, list.Items[0].ID)
}

func (f *fixture) damage(t *testing.T, qty int64) {
	t.Helper()
	_, err := f.env.Ledger.RecordMovement(context.Background(), ledger.RecordRequest{
		Type:        ledger.MovementDamage,
		ProductID:   f.product,
		WarehouseID: f.warehouse,
		Quantity:    types.Qty(qty),
	})
	require.NoError(t, err)
}

func TestCancel_AfterDamageCutIntoReserve(t *testing.T) {
	f := newFixture(t)
	r := f.reserve(t, 80)
	f.damage(t, 50)

	bal := f.env.Balance(t, f.product, f.warehouse)
	require.Equal(t, types.Qty(50), bal.Quantity)
	require.Equal(t, types.Qty(50), bal.ReservedQty)

	r, err := f.env.Reservations.Cancel(context.Background(), r.ID, "damaged in yard")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, r.Status)
	assert.Zero(t, r.ReservedQty)
	assert.Equal(t, types.Qty(80), r.ReleasedQty)

	bal = f.env.Balance(t, f.product, f.warehouse)
	assert.Equal(t, types.Qty(50), bal.Quantity)
	assert.Zero(t, bal.ReservedQty)
	assert.Equal(t, types.Qty(50), bal.AvailableQty())
}

func TestRelease_AfterDamageCutIntoReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.reserve(t, 60)
	second := f.reserve(t, 20)
	f.damage(t, 50)
	require.Equal(t, types.Qty(50), f.env.Balance(t, f.product, f.warehouse).ReservedQty)

	r, err := f.env.Reservations.Release(ctx, first.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusReleased, r.Status)
	assert.Equal(t, types.Qty(60), r.ReleasedQty)
	assert.Zero(t, f.env.Balance(t, f.product, f.warehouse).ReservedQty)

	// Nothing is left in reserve; the second document still closes.
	r, err = f.env.Reservations.Release(ctx, second.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusReleased, r.Status)

	bal := f.env.Balance(t, f.product, f.warehouse)
	assert.Equal(t, types.Qty(50), bal.Quantity)
	assert.Zero(t, bal.ReservedQty)
}

func TestExpireDue_AfterDamageCutIntoReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.reserve(t, 80)
	f.damage(t, 50)

	f.env.Now = f.env.Now.Add(reservation.DefaultExpiry + time.Minute)
	n, err := f.env.Reservations.ExpireDue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.env.Reservations.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusExpired, got.Status)
	assert.Zero(t, f.env.Balance(t, f.product, f.warehouse).ReservedQty)
}
