// Package main seeds the ledger with demo catalogs, bin locations and opening
// stock. Running it twice leaves the data unchanged.
package main

import (
	"context"
	"fmt"
	"os"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/bins"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

type productSeed struct {
	code     string
	name     string
	category product.Category
	unit     string
	reorder  int64
	safety   int64
	cost     string
}

var products = []productSeed{
	{"OAK-NAT-7", "Natural oak plank 7in", product.CategoryFlooring, "sqft", 400, 150, "4.85"},
	{"WAL-SMK-5", "Smoked walnut plank 5in", product.CategoryFlooring, "sqft", 250, 100, "6.20"},
	{"TILE-CRM-24", "Cream porcelain tile 24x24", product.CategoryFlooring, "sqft", 600, 200, "2.15"},
	{"DOOR-SHK-30", "Shaker interior door 30in", product.CategoryDoorsWindows, "piece", 10, 4, "129.00"},
	{"PNT-WHT-1G", "Matte white paint 1 gal", product.CategoryPaints, "litre", 40, 12, "18.50"},
}

type warehouseSeed struct {
	code   string
	name   string
	whType warehouse.WarehouseType
}

var warehouses = []warehouseSeed{
	{"MAIN", "Main warehouse", warehouse.TypeMain},
	{"SHOW", "Showroom", warehouse.TypeShowroom},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: "info", Development: true, Service: "stockledger-seed"})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "seed", Source: "seed"})

	storage, err := app.OpenStorage(ctx, *cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer storage.Close()
	svc := app.NewServices(storage.Repos, app.Options{})

	productIDs := make(map[string]id.ID, len(products))
	for _, p := range products {
		pid, err := seedProduct(ctx, svc, p)
		if err != nil {
			log.Fatalw("failed to seed product", "code", p.code, "error", err)
		}
		productIDs[p.code] = pid
	}

	warehouseIDs := make(map[string]id.ID, len(warehouses))
	for _, w := range warehouses {
		wid, err := seedWarehouse(ctx, svc, w)
		if err != nil {
			log.Fatalw("failed to seed warehouse", "code", w.code, "error", err)
		}
		warehouseIDs[w.code] = wid
	}
	log.Infow("catalogs seeded", "products", len(productIDs), "warehouses", len(warehouseIDs))

	created, err := seedBins(ctx, svc, warehouseIDs["MAIN"])
	if err != nil {
		log.Fatalw("failed to seed bin locations", "error", err)
	}
	log.Infow("bin locations seeded", "created", created)

	if os.Getenv("SEED_DEMO_STOCK") != "false" {
		for _, p := range products {
			if err := seedOpeningStock(ctx, svc, p, productIDs[p.code], warehouseIDs["MAIN"]); err != nil {
				log.Fatalw("failed to seed opening stock", "code", p.code, "error", err)
			}
		}
		log.Infow("opening stock seeded", "warehouse", "MAIN")
	}

	log.Info("seeding completed successfully")
}

func seedProduct(ctx context.Context, svc *app.Services, s productSeed) (id.ID, error) {
	existing, err := svc.Products.GetByCode(ctx, s.code)
	if err == nil {
		return existing.ID, nil
	}
	if !apperror.IsNotFound(err) {
		return id.Nil(), err
	}

	p := product.NewProduct(s.code, s.name, s.category)
	p.Unit = s.unit
	p.ReorderLevel = types.Qty(s.reorder)
	p.SafetyStock = types.Qty(s.safety)
	p.MaxStock = types.Qty(s.reorder * 10)
	p.CostPrice = types.MustMoney(s.cost)
	p.TrackBatch = s.category == product.CategoryFlooring
	if err := svc.Products.Create(ctx, p); err != nil {
		return id.Nil(), err
	}
	return p.ID, nil
}

func seedWarehouse(ctx context.Context, svc *app.Services, s warehouseSeed) (id.ID, error) {
	existing, err := svc.Warehouses.GetByCode(ctx, s.code)
	if err == nil {
		return existing.ID, nil
	}
	if !apperror.IsNotFound(err) {
		return id.Nil(), err
	}

	w := warehouse.NewWarehouse(s.code, s.name, s.whType)
	if err := svc.Warehouses.Create(ctx, w); err != nil {
		return id.Nil(), err
	}
	return w.ID, nil
}

// seedBins lays out zones A and B once per warehouse.
func seedBins(ctx context.Context, svc *app.Services, warehouseID id.ID) (int, error) {
	list, err := svc.Bins.List(ctx, bins.Filter{WarehouseID: &warehouseID})
	if err != nil {
		return 0, err
	}
	if len(list.Items) > 0 {
		return 0, nil
	}
	created, err := svc.Bins.BulkCreate(ctx, bins.BulkCreateRequest{
		WarehouseID:    warehouseID,
		Zones:          []string{"A", "B"},
		RacksPerZone:   4,
		ShelvesPerRack: 3,
		BinsPerShelf:   2,
		CapacityPerBin: types.Qty(500),
	})
	return len(created), err
}

// seedOpeningStock receives three reorder levels of every product. The
// idempotency key makes reruns replay the first receipt.
func seedOpeningStock(ctx context.Context, svc *app.Services, s productSeed, productID, warehouseID id.ID) error {
	cost := types.MustMoney(s.cost)
	req := ledger.RecordRequest{
		Type:           ledger.MovementGoodsReceipt,
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Quantity:       types.Qty(s.reorder * 3),
		UnitCost:       &cost,
		Reference:      ledger.Reference{Type: ledger.RefManual, Number: "OPENING"},
		IdempotencyKey: "seed:opening:" + s.code,
		Notes:          "Opening balance",
	}
	if s.category == product.CategoryFlooring {
		req.Batch = &ledger.BatchInfo{BatchNumber: "OPEN-" + s.code}
	}
	_, err := svc.Ledger.RecordMovement(ctx, req)
	return err
}
