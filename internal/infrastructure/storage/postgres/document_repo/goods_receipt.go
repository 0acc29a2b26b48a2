package document_repo

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	goodsReceiptsTable     = "doc_goods_receipts"
	goodsReceiptItemsTable = "doc_goods_receipt_items"
)

// GoodsReceiptRepo implements goods_receipt.Repository.
type GoodsReceiptRepo struct {
	*BaseDocumentRepo[*goods_receipt.GoodsReceipt, goods_receipt.Item]
}

var _ goods_receipt.Repository = (*GoodsReceiptRepo)(nil)

// NewGoodsReceiptRepo creates a GRN repository.
func NewGoodsReceiptRepo(txManager *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*goods_receipt.GoodsReceipt, goods_receipt.Item](
			txManager,
			goodsReceiptsTable,
			goodsReceiptItemsTable,
			"GRN",
			func() *goods_receipt.GoodsReceipt { return &goods_receipt.GoodsReceipt{} },
		),
	}
}

// List implements goods_receipt.Repository.
func (r *GoodsReceiptRepo) List(ctx context.Context, filter goods_receipt.ListFilter) (domain.ListResult[*goods_receipt.GoodsReceipt], error) {
	return r.list(ctx, r.query().Where(grnWhere(filter)), filter.Page)
}

// Summarize implements goods_receipt.Repository.
func (r *GoodsReceiptRepo) Summarize(ctx context.Context, filter goods_receipt.ListFilter) (goods_receipt.Summary, error) {
	var sum goods_receipt.Summary
	rows, err := r.summaryRows(ctx, grnWhere(filter), "status", "total_value")
	if err != nil {
		return sum, err
	}
	for _, doc := range rows {
		sum.Add(doc)
	}
	return sum, nil
}

func grnWhere(f goods_receipt.ListFilter) squirrel.And {
	where := dateRange(f.DateFrom, f.DateTo)
	if f.WarehouseID != nil {
		where = append(where, squirrel.Eq{"warehouse_id": *f.WarehouseID})
	}
	if f.VendorID != nil {
		where = append(where, squirrel.Eq{"vendor_id": *f.VendorID})
	}
	if f.Status != "" {
		where = append(where, squirrel.Eq{"status": f.Status})
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + search + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"invoice_number": pattern},
			squirrel.ILike{"purchase_order_number": pattern},
		})
	}
	return where
}
