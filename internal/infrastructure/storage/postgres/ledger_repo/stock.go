// Package ledger_repo provides the PostgreSQL repositories of the stock
// ledger: balances, movements and batches.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const balancesTable = "stock_balances"

var balanceColumns = postgres.ExtractDBColumns[ledger.Balance]()

// StockRepo implements ledger.StockRepository.
type StockRepo struct {
	txManager *postgres.TxManager
}

var _ ledger.StockRepository = (*StockRepo)(nil)

// NewStockRepo creates a balance repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{txManager: txManager}
}

// GetOrCreateForUpdate implements ledger.StockRepository. The insert is a
// no-op when a concurrent transaction created the balance first; the
// following SELECT ... FOR UPDATE then waits for it.
func (r *StockRepo) GetOrCreateForUpdate(ctx context.Context, seed *ledger.Balance) (*ledger.Balance, error) {
	db := r.txManager.Querier(ctx)

	insert := postgres.Builder().
		Insert(balancesTable).
		SetMap(postgres.StructToMap(seed)).
		Suffix("ON CONFLICT (product_id, warehouse_id) DO NOTHING")
	if _, err := postgres.Exec(ctx, db, insert); err != nil {
		return nil, fmt.Errorf("seed stock balance: %w", err)
	}

	var b ledger.Balance
	err := postgres.Get(ctx, db, &b, postgres.Builder().
		Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"product_id": seed.ProductID, "warehouse_id": seed.WarehouseID}).
		Suffix("FOR UPDATE"))
	if err != nil {
		return nil, fmt.Errorf("lock stock balance: %w", err)
	}
	return &b, nil
}

// Get implements ledger.StockRepository.
func (r *StockRepo) Get(ctx context.Context, productID, warehouseID id.ID) (*ledger.Balance, error) {
	var b ledger.Balance
	err := postgres.Get(ctx, r.txManager.Querier(ctx), &b, postgres.Builder().
		Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"product_id": productID, "warehouse_id": warehouseID}))
	if err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("Stock balance", productID.String()+"/"+warehouseID.String())
		}
		return nil, fmt.Errorf("get stock balance: %w", err)
	}
	return &b, nil
}

// Save implements ledger.StockRepository.
func (r *StockRepo) Save(ctx context.Context, b *ledger.Balance) error {
	data := postgres.Columns(postgres.StructToMap(b), balanceColumns,
		"id", "product_id", "warehouse_id", "version", "created_at")

	result, err := postgres.Exec(ctx, r.txManager.Querier(ctx), postgres.Builder().
		Update(balancesTable).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": b.ID, "version": b.Version}))
	if err != nil {
		return fmt.Errorf("save stock balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("Stock balance", b.ID.String())
	}
	b.Version++
	return nil
}

func balanceWhere(q squirrel.SelectBuilder, f ledger.BalanceFilter) squirrel.SelectBuilder {
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.ExcludeZero {
		q = q.Where(squirrel.NotEq{"quantity": 0})
	}
	if f.LowStockOnly {
		q = q.Where("quantity - reserved_qty <= reorder_level")
	}
	return q
}

// List implements ledger.StockRepository. Balances are ordered by creation.
func (r *StockRepo) List(ctx context.Context, filter ledger.BalanceFilter) (domain.ListResult[*ledger.Balance], error) {
	result := domain.ListResult[*ledger.Balance]{Limit: filter.Limit, Offset: filter.Offset}
	db := r.txManager.Querier(ctx)

	q := balanceWhere(postgres.Builder().Select(balanceColumns...).From(balancesTable), filter)
	var err error
	if result.TotalCount, err = postgres.Count(ctx, db, q); err != nil {
		return result, err
	}

	q = postgres.Paginate(q.OrderBy("created_at", "id"), filter.Limit, filter.Offset)
	if err := postgres.Select(ctx, db, &result.Items, q); err != nil {
		return result, fmt.Errorf("list stock balances: %w", err)
	}
	return result, nil
}

// Summarize implements ledger.StockRepository. Value is quantity × average
// cost with the quantity unscaled in NUMERIC, so no precision is lost.
func (r *StockRepo) Summarize(ctx context.Context, filter ledger.BalanceFilter) (ledger.BalanceSummary, error) {
	q := balanceWhere(postgres.Builder().
		Select(
			"COUNT(*) AS total_items",
			"COALESCE(SUM(quantity), 0)::bigint AS total_quantity",
			"COALESCE(SUM(reserved_qty), 0)::bigint AS total_reserved",
			"COALESCE(SUM(quantity - reserved_qty), 0)::bigint AS total_available",
			fmt.Sprintf("COALESCE(SUM(quantity::numeric / %d * avg_cost_price), 0) AS total_value", types.QuantityScale),
			"COUNT(*) FILTER (WHERE quantity - reserved_qty > 0 AND quantity - reserved_qty <= reorder_level) AS low_stock_count",
			"COUNT(*) FILTER (WHERE quantity - reserved_qty <= 0) AS out_of_stock_count",
		).
		From(balancesTable), filter)

	var sum ledger.BalanceSummary
	if err := postgres.Get(ctx, r.txManager.Querier(ctx), &sum, q); err != nil {
		return sum, fmt.Errorf("summarize stock balances: %w", err)
	}
	return sum, nil
}
