package lot_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/bins"
	"stockledger/internal/infrastructure/storage/postgres"
)

const binsTable = "bin_locations"

var binColumns = postgres.ExtractDBColumns[bins.Bin]()

// BinRepo implements bins.Repository.
type BinRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
}

var _ bins.Repository = (*BinRepo)(nil)

// NewBinRepo creates a bin location repository.
func NewBinRepo(txManager *postgres.TxManager) *BinRepo {
	return &BinRepo{txManager: txManager, inserter: postgres.NewBatchInserter(txManager)}
}

func (r *BinRepo) selectBins() squirrel.SelectBuilder {
	return postgres.Builder().Select(binColumns...).From(binsTable)
}

func (r *BinRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*bins.Bin, error) {
	var b bins.Bin
	if err := postgres.Get(ctx, r.txManager.Querier(ctx), &b, q); err != nil {
		if postgres.NotFound(err) {
			return nil, apperror.NewNotFound("Bin location", key)
		}
		return nil, fmt.Errorf("get bin location: %w", err)
	}
	return &b, nil
}

// Create implements bins.Repository.
func (r *BinRepo) Create(ctx context.Context, b *bins.Bin) error {
	q := postgres.Builder().Insert(binsTable).SetMap(postgres.StructToMap(b))
	if _, err := postgres.Exec(ctx, r.txManager.Querier(ctx), q); err != nil {
		return duplicateBin(err, b.Code)
	}
	return nil
}

// CreateMany implements bins.Repository. Large sets go through COPY when a
// transaction is active.
func (r *BinRepo) CreateMany(ctx context.Context, items []*bins.Bin) error {
	if len(items) >= postgres.CopyThreshold && r.txManager.GetTx(ctx) != nil {
		if _, err := postgres.CopyStructs(ctx, r.inserter, binsTable, binColumns, items); err != nil {
			return duplicateBin(err, "")
		}
		return nil
	}
	for _, b := range items {
		if err := r.Create(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func duplicateBin(err error, code string) error {
	if _, ok := postgres.UniqueViolation(err); ok {
		return apperror.NewDuplicate("Bin location", "code", code).WithCause(err)
	}
	return postgres.MapError(fmt.Errorf("insert bin location: %w", err), "Bin location", code)
}

// GetByID implements bins.Repository.
func (r *BinRepo) GetByID(ctx context.Context, binID id.ID) (*bins.Bin, error) {
	return r.getOne(ctx, r.selectBins().Where(squirrel.Eq{"id": binID}), binID.String())
}

// GetByCode implements bins.Repository.
func (r *BinRepo) GetByCode(ctx context.Context, warehouseID id.ID, code string) (*bins.Bin, error) {
	code = strings.TrimSpace(code)
	return r.getOne(ctx, r.selectBins().Where(squirrel.Eq{"warehouse_id": warehouseID, "code": code}), code)
}

// GetForUpdate implements bins.Repository.
func (r *BinRepo) GetForUpdate(ctx context.Context, binID id.ID) (*bins.Bin, error) {
	return r.getOne(ctx, r.selectBins().Where(squirrel.Eq{"id": binID}).Suffix("FOR UPDATE"), binID.String())
}

// Update implements bins.Repository.
func (r *BinRepo) Update(ctx context.Context, b *bins.Bin) error {
	data := postgres.Columns(postgres.StructToMap(b), binColumns, "id", "warehouse_id", "version", "created_at", "created_by")
	ok, err := postgres.UpdateVersioned(ctx, r.txManager.Querier(ctx), binsTable, b.ID, b.Version, data)
	if err != nil {
		return duplicateBin(err, b.Code)
	}
	if !ok {
		if _, err := r.GetByID(ctx, b.ID); err != nil {
			return err
		}
		return apperror.NewConcurrentModification("Bin location", b.ID.String())
	}
	b.Version++
	return nil
}

// Delete implements bins.Repository.
func (r *BinRepo) Delete(ctx context.Context, binID id.ID) error {
	tag, err := postgres.Exec(ctx, r.txManager.Querier(ctx), postgres.Builder().
		Delete(binsTable).
		Where(squirrel.Eq{"id": binID}))
	if err != nil {
		return postgres.MapError(fmt.Errorf("delete bin location: %w", err), "Bin location", binID.String())
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("Bin location", binID.String())
	}
	return nil
}

// List implements bins.Repository.
func (r *BinRepo) List(ctx context.Context, filter bins.Filter) ([]*bins.Bin, error) {
	q := r.selectBins()
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.Zone != "" {
		q = q.Where(squirrel.Eq{"zone": filter.Zone})
	}
	if filter.Rack != "" {
		q = q.Where(squirrel.Eq{"rack": filter.Rack})
	}
	if filter.AvailableOnly {
		q = q.Where(squirrel.Eq{"status": bins.StatusAvailable}).Where("occupancy < capacity")
	}

	var out []*bins.Bin
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &out, q.OrderBy("code")); err != nil {
		return nil, fmt.Errorf("list bin locations: %w", err)
	}
	return out, nil
}

// ExistingCodes implements bins.Repository.
func (r *BinRepo) ExistingCodes(ctx context.Context, warehouseID id.ID, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var taken []string
	q := postgres.Builder().
		Select("code").
		From(binsTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID, "code": codes}).
		OrderBy("code")
	if err := postgres.Select(ctx, r.txManager.Querier(ctx), &taken, q); err != nil {
		return nil, fmt.Errorf("existing bin codes: %w", err)
	}
	return taken, nil
}
