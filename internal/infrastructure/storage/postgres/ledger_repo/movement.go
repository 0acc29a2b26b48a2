package ledger_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "stock_movements"

var movementColumns = postgres.ExtractDBColumns[ledger.Movement]()

// MovementRepo implements ledger.MovementRepository. Rows are never updated
// or deleted.
type MovementRepo struct {
	txManager *postgres.TxManager
}

var _ ledger.MovementRepository = (*MovementRepo)(nil)

// NewMovementRepo creates a movement repository.
func NewMovementRepo(txManager *postgres.TxManager) *MovementRepo {
	return &MovementRepo{txManager: txManager}
}

// Insert implements ledger.MovementRepository.
func (r *MovementRepo) Insert(ctx context.Context, m *ledger.Movement) error {
	q := postgres.Builder().Insert(movementsTable).SetMap(postgres.StructToMap(m))
	if _, err := postgres.Exec(ctx, r.txManager.Querier(ctx), q); err != nil {
		if constraint, ok := postgres.UniqueViolation(err); ok && strings.Contains(constraint, "idempotency") && m.IdempotencyKey != nil {
			return apperror.NewConflict("movement with this idempotency key already exists").
				WithDetail("idempotencyKey", *m.IdempotencyKey).
				WithCause(err)
		}
		return postgres.MapError(fmt.Errorf("insert movement: %w", err), "Movement", m.Number)
	}
	return nil
}

func (r *MovementRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key string) (*ledger.Movement, error) {
	var m ledger.Movement
	err := postgres.Get(ctx, r.txManager.Querier(ctx), &m, postgres.Builder().
		Select(movementColumns...).
		From(movementsTable).
		Where(where))
	if err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("Movement", key)
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &m, nil
}

// GetByID implements ledger.MovementRepository.
func (r *MovementRepo) GetByID(ctx context.Context, movementID id.ID) (*ledger.Movement, error) {
	return r.getOne(ctx, squirrel.Eq{"id": movementID}, movementID.String())
}

// GetByIdempotencyKey implements ledger.MovementRepository.
func (r *MovementRepo) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Movement, error) {
	return r.getOne(ctx, squirrel.Eq{"idempotency_key": key}, key)
}

func movementWhere(q squirrel.SelectBuilder, f ledger.MovementFilter) squirrel.SelectBuilder {
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		q = q.Where(squirrel.Eq{"movement_type": types})
	}
	if f.BatchNumber != "" {
		q = q.Where(squirrel.Eq{"batch_number": f.BatchNumber})
	}
	if f.ReferenceType != "" {
		q = q.Where(squirrel.Eq{"reference_type": f.ReferenceType})
	}
	if f.ReferenceID != nil {
		q = q.Where(squirrel.Eq{"reference_id": *f.ReferenceID})
	}
	if f.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *f.DateFrom})
	}
	if f.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *f.DateTo})
	}
	return q
}

// List implements ledger.MovementRepository. Newest movements come first.
func (r *MovementRepo) List(ctx context.Context, filter ledger.MovementFilter) (domain.ListResult[*ledger.Movement], error) {
	result := domain.ListResult[*ledger.Movement]{Limit: filter.Limit, Offset: filter.Offset}
	db := r.txManager.Querier(ctx)

	q := movementWhere(postgres.Builder().Select(movementColumns...).From(movementsTable), filter)
	var err error
	if result.TotalCount, err = postgres.Count(ctx, db, q); err != nil {
		return result, err
	}

	q = postgres.Paginate(q.OrderBy("created_at DESC", "id DESC"), filter.Limit, filter.Offset)
	if err := postgres.Select(ctx, db, &result.Items, q); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

// Summarize implements ledger.MovementRepository.
func (r *MovementRepo) Summarize(ctx context.Context, filter ledger.MovementFilter) (ledger.MovementSummary, error) {
	q := movementWhere(postgres.Builder().
		Select(
			"COALESCE(SUM(quantity_change) FILTER (WHERE quantity_change > 0), 0)::bigint AS total_in",
			"COALESCE(-SUM(quantity_change) FILTER (WHERE quantity_change < 0), 0)::bigint AS total_out",
			"COALESCE(SUM(quantity_change), 0)::bigint AS net_change",
			"COUNT(*) AS count",
		).
		From(movementsTable), filter)

	var sum ledger.MovementSummary
	if err := postgres.Get(ctx, r.txManager.Querier(ctx), &sum, q); err != nil {
		return sum, fmt.Errorf("summarize movements: %w", err)
	}
	return sum, nil
}

// ListForKey implements ledger.MovementRepository.
func (r *MovementRepo) ListForKey(ctx context.Context, productID, warehouseID id.ID) ([]*ledger.Movement, error) {
	var out []*ledger.Movement
	err := postgres.Select(ctx, r.txManager.Querier(ctx), &out, postgres.Builder().
		Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"product_id": productID, "warehouse_id": warehouseID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("list movements for balance: %w", err)
	}
	return out, nil
}
