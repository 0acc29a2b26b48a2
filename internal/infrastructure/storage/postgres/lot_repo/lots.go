// Package lot_repo provides the PostgreSQL repositories of physical stock
// placement: lots and bin locations.
package lot_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/lots"
	"stockledger/internal/infrastructure/storage/postgres"
)

const lotsTable = "lots"

var lotColumns = postgres.ExtractDBColumns[lots.Lot]()

// LotRepo implements lots.Repository.
type LotRepo struct {
	txManager *postgres.TxManager
}

var _ lots.Repository = (*LotRepo)(nil)

// NewLotRepo creates a lot repository.
func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{txManager: txManager}
}

func (r *LotRepo) selectLots() squirrel.SelectBuilder {
	return postgres.Builder().Select(lotColumns...).From(lotsTable)
}

func (r *LotRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*lots.Lot, error) {
	var lot lots.Lot
	if err := postgres.Get(ctx, r.txManager.Querier(ctx), &lot, q); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("Lot", key)
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

// Create implements lots.Repository.
func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	q := postgres.Builder().Insert(lotsTable).SetMap(postgres.StructToMap(lot))
	if _, err := postgres.Exec(ctx, r.txManager.Querier(ctx), q); err != nil {
		if _, ok := postgres.UniqueViolation(err); ok {
			return apperror.NewDuplicate("Lot", "lotNumber", lot.LotNumber).WithCause(err)
		}
		return postgres.MapError(fmt.Errorf("insert lot: %w", err), "Lot", lot.LotNumber)
	}
	return nil
}

// GetByID implements lots.Repository.
func (r *LotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	return r.getOne(ctx, r.selectLots().Where(squirrel.Eq{"id": lotID}), lotID.String())
}

// GetForUpdate implements lots.Repository.
func (r *LotRepo) GetForUpdate(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	return r.getOne(ctx, r.selectLots().Where(squirrel.Eq{"id": lotID}).Suffix("FOR UPDATE"), lotID.String())
}

// GetByNumber implements lots.Repository.
func (r *LotRepo) GetByNumber(ctx context.Context, lotNumber string) (*lots.Lot, error) {
	return r.getOne(ctx, r.selectLots().Where(squirrel.Eq{"lot_number": lotNumber}), lotNumber)
}

// Update implements lots.Repository.
func (r *LotRepo) Update(ctx context.Context, lot *lots.Lot) error {
	data := postgres.Columns(postgres.StructToMap(lot), lotColumns, "id", "version", "created_at", "created_by")
	ok, err := postgres.UpdateVersioned(ctx, r.txManager.Querier(ctx), lotsTable, lot.ID, lot.Version, data)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update lot: %w", err), "Lot", lot.LotNumber)
	}
	if !ok {
		if _, err := r.GetByID(ctx, lot.ID); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("Lot", lot.ID.String())
	}
	lot.Version++
	return nil
}

// List implements lots.Repository. The newest lots come first.
func (r *LotRepo) List(ctx context.Context, filter lots.Filter) (domain.ListResult[*lots.Lot], error) {
	result := domain.ListResult[*lots.Lot]{Limit: filter.Limit, Offset: filter.Offset}
	db := r.txManager.Querier(ctx)

	q := r.selectLots()
	eq := squirrel.Eq{}
	if filter.ProductID != nil {
		eq["product_id"] = *filter.ProductID
	}
	if filter.WarehouseID != nil {
		eq["warehouse_id"] = *filter.WarehouseID
	}
	if filter.BinID != nil {
		eq["bin_id"] = *filter.BinID
	}
	if filter.Status != "" {
		eq["status"] = filter.Status
	}
	if filter.QCStatus != "" {
		eq["qc_status"] = filter.QCStatus
	}
	if filter.Shade != "" {
		eq["shade"] = filter.Shade
	}
	if filter.Grade != "" {
		eq["grade"] = filter.Grade
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"lot_number": pattern},
			squirrel.ILike{"barcode": pattern},
		})
	}

	var err error
	if result.TotalCount, err = postgres.Count(ctx, db, q); err != nil {
		return result, err
	}
	q = postgres.Paginate(q.OrderBy("created_at DESC", "id DESC"), filter.Limit, filter.Offset)
	if err := postgres.Select(ctx, db, &result.Items, q); err != nil {
		return result, fmt.Errorf("list lots: %w", err)
	}
	return result, nil
}

// ListByBin implements lots.Repository.
func (r *LotRepo) ListByBin(ctx context.Context, binID id.ID) ([]*lots.Lot, error) {
	var out []*lots.Lot
	q := r.selectLots().Where(squirrel.Eq{"bin_id": binID}).OrderBy("created_at", "id")
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &out, q); err != nil {
		return nil, fmt.Errorf("list lots by bin: %w", err)
	}
	return out, nil
}

type binUsageRow struct {
	BinID id.ID          `db:"bin_id"`
	Sqft  types.Quantity `db:"sqft"`
	Count int            `db:"lot_count"`
}

// UsageByBin implements lots.Repository.
func (r *LotRepo) UsageByBin(ctx context.Context, warehouseID *id.ID) (map[id.ID]lots.BinUsage, error) {
	q := postgres.Builder().
		Select("bin_id", "COALESCE(SUM(sqft), 0)::bigint AS sqft", "COUNT(*) AS lot_count").
		From(lotsTable).
		Where(squirrel.NotEq{"bin_id": nil}).
		GroupBy("bin_id")
	if warehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *warehouseID})
	}

	var rows []binUsageRow
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &rows, q); err != nil {
		return nil, fmt.Errorf("bin usage: %w", err)
	}
	usage := make(map[id.ID]lots.BinUsage, len(rows))
	for _, row := range rows {
		usage[row.BinID] = lots.BinUsage{Sqft: row.Sqft, Count: row.Count}
	}
	return usage, nil
}
