// Package catalog_repo provides the PostgreSQL catalog repositories.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/storage/postgres"
)

// Item is the part of entity.Catalog the base repository needs.
type Item interface {
	entity.Validatable
	GetID() id.ID
	GetCode() string
	GetVersion() int
	SetVersion(v int)
}

// BaseCatalogRepo provides CRUD for a catalog table.
// Embed it in specific catalog repositories.
type BaseCatalogRepo[T Item] struct {
	txManager  *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a base catalog repository.
func NewBaseCatalogRepo[T Item](
	txManager *postgres.TxManager,
	tableName, entityName string,
	selectCols []string,
	newFn func() T,
) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txManager:  txManager,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

func (r *BaseCatalogRepo[T]) db(ctx context.Context) postgres.Querier {
	return r.txManager.Querier(ctx)
}

// Create inserts a new entity using its db tags.
// A live row with the same code (case-insensitive) yields a Duplicate AppError.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, item T) error {
	data := postgres.Columns(postgres.StructToMap(item), r.selectCols)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %s", r.entityName)
	}

	q := postgres.Builder().Insert(r.tableName).SetMap(data)
	if _, err := postgres.Exec(ctx, r.db(ctx), q); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.tableName, err), r.entityName, item.GetCode())
	}
	return nil
}

// Update writes the entity if its version still matches, then bumps it.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, item T) error {
	data := postgres.Columns(postgres.StructToMap(item), r.selectCols, "id", "version")

	q := postgres.Builder().
		Update(r.tableName).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": item.GetID()}).
		Where(squirrel.Eq{"version": item.GetVersion()}).
		Where(squirrel.Eq{"deletion_mark": false})

	result, err := postgres.Exec(ctx, r.db(ctx), q)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update %s: %w", r.tableName, err), r.entityName, item.GetCode())
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, item.GetID()); getErr != nil {
			return getErr
		}
		return apperror.NewConcurrentModification(r.entityName, item.GetID().String())
	}
	item.SetVersion(item.GetVersion() + 1)
	return nil
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.selectCols...).From(r.tableName)
}

// GetByID returns a live entity or a NotFound AppError.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.FindOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"id": entityID, "deletion_mark": false}),
		entityID.String())
}

// GetByCode returns a live entity by code, ignoring case.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	return r.FindOne(ctx, r.baseSelect().
		Where("lower(code) = lower(?)", code).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1),
		code)
}

// GetForUpdate returns a live entity and locks its row.
func (r *BaseCatalogRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	return r.FindOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"id": entityID, "deletion_mark": false}).
		Suffix("FOR UPDATE"),
		entityID.String())
}

// FindOne runs q and returns the single entity it selects. key names the
// entity in the NotFound error.
func (r *BaseCatalogRepo[T]) FindOne(ctx context.Context, q squirrel.SelectBuilder, key string) (T, error) {
	item := r.newFn()
	if err := postgres.Get(ctx, r.db(ctx), item, q); err != nil {
		var zero T
		if postgres.NotFound(err) {
			return zero, apperror.NewNotFound(r.entityName, key)
		}
		return zero, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return item, nil
}

// listQuery applies the filter without ordering or pagination.
func (r *BaseCatalogRepo[T]) listQuery(filter domain.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	return q
}

// List returns entities with filtering and pagination.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}

	q := r.listQuery(filter)
	db := r.db(ctx)
	if result.TotalCount, err = postgres.Count(ctx, db, q); err != nil {
		return result, err
	}

	q = postgres.Paginate(q.OrderBy(orderBy, "id"), filter.Limit, filter.Offset)
	if err := postgres.Select(ctx, db, &result.Items, q); err != nil {
		return result, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return result, nil
}

// ExistsByCode reports whether a live entity uses code.
func (r *BaseCatalogRepo[T]) ExistsByCode(ctx context.Context, code string) (bool, error) {
	sql := "SELECT EXISTS (SELECT 1 FROM " + r.tableName + " WHERE lower(code) = lower($1) AND deletion_mark = false)"

	var exists bool
	if err := r.db(ctx).QueryRow(ctx, sql, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by code: %w", err)
	}
	return exists, nil
}

// SetDeletionMark sets or clears the deletion mark (soft delete).
func (r *BaseCatalogRepo[T]) SetDeletionMark(ctx context.Context, entityID id.ID, marked bool) error {
	q := postgres.Builder().
		Update(r.tableName).
		Set("deletion_mark", marked).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": entityID})

	result, err := postgres.Exec(ctx, r.db(ctx), q)
	if err != nil {
		return postgres.MapError(fmt.Errorf("set deletion mark: %w", err), r.entityName, entityID.String())
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

// parseOrderBy turns "name" or "-code" into an ORDER BY clause, accepting
// only selected columns.
func (r *BaseCatalogRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return "name ASC", nil
	}
	col, dir := orderBy, "ASC"
	if strings.HasPrefix(orderBy, "-") {
		col, dir = orderBy[1:], "DESC"
	}
	for _, allowed := range r.selectCols {
		if allowed == col {
			return col + " " + dir, nil
		}
	}
	return "", apperror.NewValidation("invalid sort column").WithDetail("orderBy", orderBy)
}
