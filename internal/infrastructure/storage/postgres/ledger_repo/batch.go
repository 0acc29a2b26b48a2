package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/batches"
	"stockledger/internal/infrastructure/storage/postgres"
)

const batchesTable = "stock_batches"

var batchColumns = postgres.ExtractDBColumns[batches.Batch]()

// BatchRepo implements batches.Repository.
type BatchRepo struct {
	txManager *postgres.TxManager
}

var _ batches.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{txManager: txManager}
}

func (r *BatchRepo) selectBatches() squirrel.SelectBuilder {
	return postgres.Builder().Select(batchColumns...).From(batchesTable)
}

// GetByNumber implements batches.Repository.
func (r *BatchRepo) GetByNumber(ctx context.Context, productID, warehouseID id.ID, batchNumber string) (*batches.Batch, error) {
	var b batches.Batch
	err := postgres.Get(ctx, r.txManager.Querier(ctx), &b, r.selectBatches().
		Where(squirrel.Eq{"product_id": productID, "warehouse_id": warehouseID, "batch_number": batchNumber}))
	if err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("Batch", batchNumber)
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &b, nil
}

// ListActiveFIFO implements batches.Repository.
func (r *BatchRepo) ListActiveFIFO(ctx context.Context, productID, warehouseID id.ID, limit int) ([]*batches.Batch, error) {
	q := r.selectBatches().
		Where(squirrel.Eq{"product_id": productID, "warehouse_id": warehouseID, "status": batches.StatusActive}).
		Where(squirrel.Gt{"quantity": 0}).
		OrderBy("received_date", "created_at", "id")
	q = postgres.Paginate(q, limit, 0).Suffix("FOR UPDATE")

	var out []*batches.Batch
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &out, q); err != nil {
		return nil, fmt.Errorf("list fifo batches: %w", err)
	}
	return out, nil
}

// Create implements batches.Repository.
func (r *BatchRepo) Create(ctx context.Context, b *batches.Batch) error {
	q := postgres.Builder().Insert(batchesTable).SetMap(postgres.StructToMap(b))
	if _, err := postgres.Exec(ctx, r.txManager.Querier(ctx), q); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return apperror.NewDuplicate("Batch", "batchNumber", b.BatchNumber).WithCause(err)
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Update implements batches.Repository.
func (r *BatchRepo) Update(ctx context.Context, b *batches.Batch) error {
	data := postgres.Columns(postgres.StructToMap(b), batchColumns,
		"id", "product_id", "warehouse_id", "batch_number", "created_at")

	result, err := postgres.Exec(ctx, r.txManager.Querier(ctx), postgres.Builder().
		Update(batchesTable).
		SetMap(data).
		Where(squirrel.Eq{"id": b.ID}))
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("Batch", b.ID.String())
	}
	return nil
}

// List implements batches.Repository. Batches are ordered by received date.
func (r *BatchRepo) List(ctx context.Context, filter batches.Filter) ([]*batches.Batch, error) {
	q := r.selectBatches()
	if filter.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *filter.ProductID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.BatchNumber != "" {
		q = q.Where(squirrel.Eq{"batch_number": filter.BatchNumber})
	}
	if filter.ExpiringBefore != nil {
		q = q.Where(squirrel.Lt{"expiry_date": *filter.ExpiringBefore})
	}
	q = postgres.Paginate(q.OrderBy("received_date", "created_at", "id"), filter.Limit, filter.Offset)

	var out []*batches.Batch
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &out, q); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}
