package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/documents/transfer"
	"stockledger/internal/infrastructure/storage/postgres"
)

func TestGRNWhere(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	wh := id.New()

	sql, args, err := postgres.Builder().Select("id").From(goodsReceiptsTable).
		Where(grnWhere(goods_receipt.ListFilter{
			WarehouseID: &wh,
			Status:      goods_receipt.StatusReceived,
			DateFrom:    &from,
			Search:      " INV-7 ",
		})).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "date >= $1")
	assert.Contains(t, sql, "warehouse_id = $2")
	assert.Contains(t, sql, "status = $3")
	assert.Contains(t, sql, "number ILIKE $4 OR invoice_number ILIKE $5 OR purchase_order_number ILIKE $6")
	assert.Equal(t, []any{from, wh.String(), goods_receipt.StatusReceived, "%INV-7%", "%INV-7%", "%INV-7%"}, args)
}

func TestTransferWhere_Empty(t *testing.T) {
	assert.Empty(t, transferWhere(transfer.ListFilter{}))
}

func TestReservationWhere(t *testing.T) {
	assert.Nil(t, reservationWhere(reservation.ListFilter{}))

	sql, args, err := reservationWhere(reservation.ListFilter{RefType: "sales_order", RefID: "SO-9"}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(ref_id = ? AND ref_type = ?)", sql)
	assert.Equal(t, []any{"SO-9", "sales_order"}, args)
}

func TestDocumentColumns(t *testing.T) {
	repo := NewTransferRepo(nil)

	assert.Contains(t, repo.selectCols, "status_history")
	assert.Contains(t, repo.selectCols, "from_warehouse_id")
	assert.NotContains(t, repo.selectCols, "items")
	assert.Equal(t, "line_no", repo.itemCols[0])

	res := NewReservationRepo(nil)
	assert.Empty(t, res.itemCols)
}
