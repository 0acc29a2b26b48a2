package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/transfer"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "doc_transfers"
	transferItemsTable = "doc_transfer_items"
)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	*BaseDocumentRepo[*transfer.Transfer, transfer.Item]
}

var _ transfer.Repository = (*TransferRepo)(nil)

// NewTransferRepo creates a transfer repository.
func NewTransferRepo(txManager *postgres.TxManager) *TransferRepo {
	return &TransferRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*transfer.Transfer, transfer.Item](
			txManager,
			transfersTable,
			transferItemsTable,
			"Transfer",
			func() *transfer.Transfer { return &transfer.Transfer{} },
		),
	}
}

// List implements transfer.Repository.
func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Transfer], error) {
	return r.list(ctx, r.query().Where(transferWhere(filter)), filter.Page)
}

// Summarize implements transfer.Repository.
func (r *TransferRepo) Summarize(ctx context.Context, filter transfer.ListFilter) (transfer.Summary, error) {
	var sum transfer.Summary
	rows, err := r.summaryRows(ctx, transferWhere(filter), "status", "total_quantity")
	if err != nil {
		return sum, err
	}
	for _, doc := range rows {
		sum.Add(doc)
	}
	return sum, nil
}

func transferWhere(f transfer.ListFilter) squirrel.And {
	where := dateRange(f.DateFrom, f.DateTo)
	if f.FromWarehouseID != nil {
		where = append(where, squirrel.Eq{"from_warehouse_id": *f.FromWarehouseID})
	}
	if f.ToWarehouseID != nil {
		where = append(where, squirrel.Eq{"to_warehouse_id": *f.ToWarehouseID})
	}
	if f.Status != "" {
		where = append(where, squirrel.Eq{"status": f.Status})
	}
	return where
}
