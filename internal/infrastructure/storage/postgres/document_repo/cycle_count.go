package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	cycleCountsTable     = "doc_cycle_counts"
	cycleCountItemsTable = "doc_cycle_count_items"
)

// CycleCountRepo implements cycle_count.Repository.
type CycleCountRepo struct {
	*BaseDocumentRepo[*cycle_count.CycleCount, cycle_count.Item]
}

var _ cycle_count.Repository = (*CycleCountRepo)(nil)

// NewCycleCountRepo creates a cycle count repository.
func NewCycleCountRepo(txManager *postgres.TxManager) *CycleCountRepo {
	return &CycleCountRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*cycle_count.CycleCount, cycle_count.Item](
			txManager,
			cycleCountsTable,
			cycleCountItemsTable,
			"Cycle count",
			func() *cycle_count.CycleCount { return &cycle_count.CycleCount{} },
		),
	}
}

// SaveItem implements cycle_count.Repository.
func (r *CycleCountRepo) SaveItem(ctx context.Context, docID id.ID, item cycle_count.Item) error {
	return r.saveItem(ctx, docID, item.LineNo, item)
}

// List implements cycle_count.Repository.
func (r *CycleCountRepo) List(ctx context.Context, filter cycle_count.ListFilter) (domain.ListResult[*cycle_count.CycleCount], error) {
	return r.list(ctx, r.query().Where(cycleCountWhere(filter)), filter.Page)
}

// Summarize implements cycle_count.Repository.
func (r *CycleCountRepo) Summarize(ctx context.Context, filter cycle_count.ListFilter) (cycle_count.Summary, error) {
	var sum cycle_count.Summary
	rows, err := r.summaryRows(ctx, cycleCountWhere(filter), "status")
	if err != nil {
		return sum, err
	}
	for _, doc := range rows {
		sum.Add(doc)
	}
	return sum, nil
}

func cycleCountWhere(f cycle_count.ListFilter) squirrel.And {
	where := dateRange(f.DateFrom, f.DateTo)
	if f.WarehouseID != nil {
		where = append(where, squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.Status != "" {
		where = append(where, squirrel.Eq{"status": f.Status})
	}
	if f.CountType != "" {
		where = append(where, squirrel.Eq{"count_type": f.CountType})
	}
	return where
}
