// Package document_repo provides the PostgreSQL repositories of workflow
// documents. A document is a header row plus, for most types, an items table
// keyed by document_id and line_no.
package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/infrastructure/storage/postgres"
)

// Document is the part of entity.Document the base repository needs.
type Document interface {
	GetID() id.ID
	GetVersion() int
	SetVersion(v int)
}

// BaseDocumentRepo implements the CRUD shared by every document repository.
// Soft-deleted documents are invisible to reads.
type BaseDocumentRepo[T Document, I any] struct {
	txManager  *postgres.TxManager
	inserter   *postgres.BatchInserter
	tableName  string
	itemsTable string
	entityName string
	selectCols []string
	itemCols   []string
	newFn      func() T
}

// NewBaseDocumentRepo creates a base repository. itemsTable may be empty for
// documents without lines.
func NewBaseDocumentRepo[T Document, I any](
	txManager *postgres.TxManager,
	tableName, itemsTable, entityName string,
	newFn func() T,
) *BaseDocumentRepo[T, I] {
	r := &BaseDocumentRepo[T, I]{
		txManager:  txManager,
		inserter:   postgres.NewBatchInserter(txManager),
		tableName:  tableName,
		itemsTable: itemsTable,
		entityName: entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		newFn:      newFn,
	}
	if itemsTable != "" {
		r.itemCols = postgres.ExtractDBColumns[I]()
	}
	return r
}

func (r *BaseDocumentRepo[T, I]) db(ctx context.Context) postgres.Querier {
	return r.txManager.Querier(ctx)
}

// query selects live headers.
func (r *BaseDocumentRepo[T, I]) query() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(r.selectCols...).
		From(r.tableName).
		Where(squirrel.Eq{"deletion_mark": false})
}

// Create inserts the document header.
func (r *BaseDocumentRepo[T, I]) Create(ctx context.Context, doc T) error {
	q := postgres.Builder().Insert(r.tableName).SetMap(postgres.StructToMap(doc))
	if _, err := postgres.Exec(ctx, r.db(ctx), q); err != nil {
		return postgres.MapError(fmt.Errorf("insert %s: %w", r.tableName, err), r.entityName, doc.GetID().String())
	}
	return nil
}

// GetByID returns the document header.
func (r *BaseDocumentRepo[T, I]) GetByID(ctx context.Context, docID id.ID) (T, error) {
	return r.getOne(ctx, r.query().Where(squirrel.Eq{"id": docID}), docID)
}

// GetForUpdate returns the header and locks its row until the transaction ends.
func (r *BaseDocumentRepo[T, I]) GetForUpdate(ctx context.Context, docID id.ID) (T, error) {
	return r.getOne(ctx, r.query().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID)
}

func (r *BaseDocumentRepo[T, I]) getOne(ctx context.Context, q squirrel.SelectBuilder, docID id.ID) (T, error) {
	doc := r.newFn()
	if err := postgres.Get(ctx, r.db(ctx), doc, q); err != nil {
		var zero T
		if postgres.NotFound(err) {
			return zero, apperror.NewNotFound(r.entityName, docID.String())
		}
		return zero, fmt.Errorf("get %s: %w", r.tableName, err)
	}
	return doc, nil
}

// Update writes the header if its version still matches, then bumps it.
func (r *BaseDocumentRepo[T, I]) Update(ctx context.Context, doc T) error {
	data := postgres.Columns(postgres.StructToMap(doc), r.selectCols,
		"id", "version", "deletion_mark", "created_at", "created_by")
	ok, err := postgres.UpdateVersioned(ctx, r.db(ctx), r.tableName, doc.GetID(), doc.GetVersion(), data)
	if err != nil {
		return postgres.MapError(fmt.Errorf("update %s: %w", r.tableName, err), r.entityName, doc.GetID().String())
	}
	if !ok {
		if _, err := r.GetByID(ctx, doc.GetID()); err != nil {
			return err
		}
		return apperror.NewConcurrentModification(r.entityName, doc.GetID().String())
	}
	doc.SetVersion(doc.GetVersion() + 1)
	return nil
}

// Delete soft-deletes the document.
func (r *BaseDocumentRepo[T, I]) Delete(ctx context.Context, docID id.ID) error {
	tag, err := postgres.Exec(ctx, r.db(ctx), postgres.Builder().
		Update(r.tableName).
		Set("deletion_mark", true).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": docID, "deletion_mark": false}))
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, docID.String())
	}
	return nil
}

// GetItems returns the lines of a document ordered by line number.
func (r *BaseDocumentRepo[T, I]) GetItems(ctx context.Context, docID id.ID) ([]I, error) {
	var items []I
	q := postgres.Builder().
		Select(r.itemCols...).
		From(r.itemsTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")
	if err := postgres.Select(ctx, r.db(ctx), &items, q); err != nil {
		return nil, fmt.Errorf("get %s: %w", r.itemsTable, err)
	}
	return items, nil
}

// SaveItems replaces the lines of a document. Large documents are copied
// with COPY when a transaction is active.
func (r *BaseDocumentRepo[T, I]) SaveItems(ctx context.Context, docID id.ID, items []I) error {
	db := r.db(ctx)
	del := postgres.Builder().Delete(r.itemsTable).Where(squirrel.Eq{"document_id": docID})
	if _, err := postgres.Exec(ctx, db, del); err != nil {
		return fmt.Errorf("delete %s: %w", r.itemsTable, err)
	}
	if len(items) == 0 {
		return nil
	}

	cols := append([]string{"document_id"}, r.itemCols...)
	if len(items) >= postgres.CopyThreshold && r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(items))
		for _, item := range items {
			rows = append(rows, r.itemRow(docID, item))
		}
		if _, err := r.inserter.CopyFromSlice(ctx, r.itemsTable, cols, rows); err != nil {
			return fmt.Errorf("copy %s: %w", r.itemsTable, err)
		}
		return nil
	}

	q := postgres.Builder().Insert(r.itemsTable).Columns(cols...)
	for _, item := range items {
		q = q.Values(r.itemRow(docID, item)...)
	}
	if _, err := postgres.Exec(ctx, db, q); err != nil {
		return fmt.Errorf("insert %s: %w", r.itemsTable, err)
	}
	return nil
}

// saveItem overwrites the line with the given number.
func (r *BaseDocumentRepo[T, I]) saveItem(ctx context.Context, docID id.ID, lineNo int, item I) error {
	data := postgres.Columns(postgres.StructToMap(item), r.itemCols, "line_no")
	tag, err := postgres.Exec(ctx, r.db(ctx), postgres.Builder().
		Update(r.itemsTable).
		SetMap(data).
		Where(squirrel.Eq{"document_id": docID, "line_no": lineNo}))
	if err != nil {
		return fmt.Errorf("update %s: %w", r.itemsTable, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName+" item", lineNo)
	}
	return nil
}

func (r *BaseDocumentRepo[T, I]) itemRow(docID id.ID, item I) []any {
	data := postgres.StructToMap(item)
	row := make([]any, 0, len(r.itemCols)+1)
	row = append(row, docID)
	for _, col := range r.itemCols {
		row = append(row, data[col])
	}
	return row
}

// list pages through q, newest documents first.
func (r *BaseDocumentRepo[T, I]) list(ctx context.Context, q squirrel.SelectBuilder, page domain.Page) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: page.Limit, Offset: page.Offset}
	db := r.db(ctx)

	var err error
	if result.TotalCount, err = postgres.Count(ctx, db, q); err != nil {
		return result, err
	}
	q = postgres.Paginate(q.OrderBy("created_at DESC", "id DESC"), page.Limit, page.Offset)
	if err := postgres.Select(ctx, db, &result.Items, q); err != nil {
		return result, fmt.Errorf("list %s: %w", r.tableName, err)
	}
	return result, nil
}

// summaryRows loads only cols of the live headers matching where, enough for
// the Summary.Add of the document type.
func (r *BaseDocumentRepo[T, I]) summaryRows(ctx context.Context, where squirrel.And, cols ...string) ([]T, error) {
	q := postgres.Builder().
		Select(cols...).
		From(r.tableName).
		Where(squirrel.Eq{"deletion_mark": false})
	if len(where) > 0 {
		q = q.Where(where)
	}
	var rows []T
	if err := postgres.Select(ctx, r.db(ctx), &rows, q); err != nil {
		return nil, fmt.Errorf("summarize %s: %w", r.tableName, err)
	}
	return rows, nil
}

// dateRange filters the business date of a document.
func dateRange(from, to *time.Time) squirrel.And {
	var and squirrel.And
	if from != nil {
		and = append(and, squirrel.GtOrEq{"date": *from})
	}
	if to != nil {
		and = append(and, squirrel.LtOrEq{"date": *to})
	}
	return and
}
