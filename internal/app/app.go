// Package app wires repositories into the domain services. The server, the
// worker, the seeder and the HTTP tests build their services here.
package app

import (
	"time"

	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/batches"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/catalogs"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/domain/documents/transfer"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/lots"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/events"
	"stockledger/internal/infrastructure/idempotency"
	"stockledger/internal/infrastructure/storage/memory"
)

// Repositories is one storage driver.
type Repositories struct {
	Stock         ledger.StockRepository
	Movements     ledger.MovementRepository
	Batches       batches.Repository
	Lots          lots.Repository
	Bins          bins.Repository
	GoodsReceipts goods_receipt.Repository
	CycleCounts   cycle_count.Repository
	Transfers     transfer.Repository
	Reservations  reservation.Repository
	Products      product.Repository
	Warehouses    warehouse.Repository
	Reports       reports.Repository

	TxManager   tx.Manager
	Numerator   numerator.Generator
	Events      domain.EventPublisher
	Audit       domain.AuditRecorder
	Outbox      events.Store
	Idempotency idempotency.Store
}

// MemoryRepositories builds the in-process driver over s.
func MemoryRepositories(s *memory.Store, idempotencyTTL time.Duration) Repositories {
	outbox := memory.NewOutbox(s)
	return Repositories{
		Stock:         memory.NewStockRepo(s),
		Movements:     memory.NewMovementRepo(s),
		Batches:       memory.NewBatchRepo(s),
		Lots:          memory.NewLotRepo(s),
		Bins:          memory.NewBinRepo(s),
		GoodsReceipts: memory.NewGoodsReceiptRepo(s),
		CycleCounts:   memory.NewCycleCountRepo(s),
		Transfers:     memory.NewTransferRepo(s),
		Reservations:  memory.NewReservationRepo(s),
		Products:      memory.NewProductRepo(s),
		Warehouses:    memory.NewWarehouseRepo(s),
		Reports:       memory.NewReportRepo(s),
		TxManager:     s,
		Numerator:     numerator.NewSequenceGenerator(),
		Events:        outbox,
		Audit:         memory.NewAuditLog(s),
		Outbox:        outbox,
		Idempotency:   memory.NewIdempotencyStore(s, idempotencyTTL),
	}
}

// Options tunes service construction.
type Options struct {
	Metrics ledger.Metrics
	Clock   func() time.Time
}

// Services is the full set of domain services.
type Services struct {
	Catalog       *catalogs.Lookup
	Ledger        *ledger.Service
	Lots          *lots.Service
	Bins          *bins.Service
	GoodsReceipts *goods_receipt.Service
	CycleCounts   *cycle_count.Service
	Transfers     *transfer.Service
	Reservations  *reservation.Service
	Products      *product.Service
	Warehouses    *warehouse.Service
	Reports       *reports.Service
}

// NewServices wires every service over r.
func NewServices(r Repositories, opts Options) *Services {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	lookup := catalogs.NewLookup(r.Products, r.Warehouses)

	ledgerSvc := ledger.NewService(ledger.ServiceConfig{
		Stock:     r.Stock,
		Movements: r.Movements,
		Batches:   batches.NewTracker(r.Batches),
		Catalog:   lookup,
		TxManager: r.TxManager,
		Numerator: r.Numerator,
		Events:    r.Events,
		Metrics:   opts.Metrics,
		Clock:     clock,
	})

	lotSvc := lots.NewService(lots.ServiceConfig{
		Repo:      r.Lots,
		Ledger:    ledgerSvc,
		Catalog:   lookup,
		TxManager: r.TxManager,
		Audit:     r.Audit,
		Clock:     clock,
	})
	binSvc := bins.NewService(bins.ServiceConfig{
		Repo:      r.Bins,
		Lots:      r.Lots,
		Catalog:   lookup,
		TxManager: r.TxManager,
		Events:    r.Events,
		Audit:     r.Audit,
		Clock:     clock,
	})
	lotSvc.SetLocator(binSvc)

	return &Services{
		Catalog: lookup,
		Ledger:  ledgerSvc,
		Lots:    lotSvc,
		Bins:    binSvc,
		GoodsReceipts: goods_receipt.NewService(goods_receipt.ServiceConfig{
			Repo:      r.GoodsReceipts,
			Ledger:    ledgerSvc,
			Catalog:   lookup,
			Lots:      lotSvc,
			Numerator: r.Numerator,
			TxManager: r.TxManager,
			Events:    r.Events,
			Audit:     r.Audit,
			Clock:     clock,
		}),
		CycleCounts: cycle_count.NewService(cycle_count.ServiceConfig{
			Repo:      r.CycleCounts,
			Ledger:    ledgerSvc,
			Catalog:   lookup,
			Numerator: r.Numerator,
			TxManager: r.TxManager,
			Events:    r.Events,
			Audit:     r.Audit,
			Clock:     clock,
		}),
		Transfers: transfer.NewService(transfer.ServiceConfig{
			Repo:      r.Transfers,
			Ledger:    ledgerSvc,
			Catalog:   lookup,
			Numerator: r.Numerator,
			TxManager: r.TxManager,
			Events:    r.Events,
			Audit:     r.Audit,
			Clock:     clock,
		}),
		Reservations: reservation.NewService(reservation.ServiceConfig{
			Repo:      r.Reservations,
			Ledger:    ledgerSvc,
			Numerator: r.Numerator,
			TxManager: r.TxManager,
			Audit:     r.Audit,
			Clock:     clock,
		}),
		Products:   product.NewService(r.Products, r.TxManager, r.Numerator),
		Warehouses: warehouse.NewService(r.Warehouses, r.TxManager, r.Numerator),
		Reports:    reports.NewService(r.Reports, r.Batches, clock),
	}
}
