// Package apptest builds services over the memory driver for tests.
package apptest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

// Env is a fully wired in-memory application.
type Env struct {
	Store *memory.Store
	Repos app.Repositories
	*app.Services

	// Now is the clock of every service; tests may move it.
	Now time.Time
}

// New creates an empty environment with the clock at 2026-03-02 10:00 UTC.
func New(t testing.TB) *Env {
	t.Helper()
	e := &Env{
		Store: memory.New(),
		Now:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	e.Repos = app.MemoryRepositories(e.Store, time.Hour)
	e.Services = app.NewServices(e.Repos, app.Options{Clock: func() time.Time { return e.Now }})
	return e
}

// Product stores an active product and returns its id.
func (e *Env) Product(t testing.TB, code string, opts ...func(*product.Product)) id.ID {
	t.Helper()
	p := product.NewProduct(code, "Product "+code, product.CategoryFlooring)
	for _, opt := range opts {
		opt(p)
	}
	require.NoError(t, e.Repos.Products.Create(context.Background(), p))
	return p.ID
}

// Warehouse stores an active warehouse and returns its id.
func (e *Env) Warehouse(t testing.TB, code string) id.ID {
	t.Helper()
	w := warehouse.NewWarehouse(code, "Warehouse "+code, warehouse.TypeMain)
	require.NoError(t, e.Repos.Warehouses.Create(context.Background(), w))
	return w.ID
}

// Receive posts a priced goods receipt.
func (e *Env) Receive(t testing.TB, productID, warehouseID id.ID, qty int64, unitCost string) *ledger.Result {
	t.Helper()
	cost := types.MustMoney(unitCost)
	res, err := e.Ledger.RecordMovement(context.Background(), ledger.RecordRequest{
		Type:        ledger.MovementGoodsReceipt,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    types.Qty(qty),
		UnitCost:    &cost,
	})
	require.NoError(t, err)
	return res
}

// Balance returns the stored balance.
func (e *Env) Balance(t testing.TB, productID, warehouseID id.ID) *ledger.Balance {
	t.Helper()
	bal, err := e.Ledger.GetBalance(context.Background(), productID, warehouseID)
	require.NoError(t, err)
	return bal
}
