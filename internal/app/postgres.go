package app

import (
	"fmt"
	"time"

	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/lot_repo"
	"stockledger/internal/infrastructure/storage/postgres/report_repo"
)

// PostgresRepositories builds the PostgreSQL driver. Document numbers are
// drawn on the pool, outside of business transactions.
func PostgresRepositories(pool *postgres.Pool, txManager *postgres.TxManager, idempotencyTTL time.Duration) (Repositories, error) {
	audit, err := postgres.NewAuditLog(txManager)
	if err != nil {
		return Repositories{}, fmt.Errorf("create audit log: %w", err)
	}
	outbox := postgres.NewOutbox(txManager)

	return Repositories{
		Stock:         ledger_repo.NewStockRepo(txManager),
		Movements:     ledger_repo.NewMovementRepo(txManager),
		Batches:       ledger_repo.NewBatchRepo(txManager),
		Lots:          lot_repo.NewLotRepo(txManager),
		Bins:          lot_repo.NewBinRepo(txManager),
		GoodsReceipts: document_repo.NewGoodsReceiptRepo(txManager),
		CycleCounts:   document_repo.NewCycleCountRepo(txManager),
		Transfers:     document_repo.NewTransferRepo(txManager),
		Reservations:  document_repo.NewReservationRepo(txManager),
		Products:      catalog_repo.NewProductRepo(txManager),
		Warehouses:    catalog_repo.NewWarehouseRepo(txManager),
		Reports:       report_repo.NewReportRepo(txManager),
		TxManager:     txManager,
		Numerator:     numerator.New(pool),
		Events:        outbox,
		Audit:         audit,
		Outbox:        outbox,
		Idempotency:   postgres.NewIdempotencyStore(txManager, idempotencyTTL),
	}, nil
}
