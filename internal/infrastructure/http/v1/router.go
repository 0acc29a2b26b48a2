// Package v1 provides HTTP API version 1.
package v1

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/app"
	"stockledger/internal/domain/catalogs/product"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/idempotency"
	"stockledger/internal/infrastructure/observability"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Services is the wired application
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// Idempotency stores X-Idempotency-Key responses
	Idempotency        idempotency.Store
	IdempotencyEnabled bool

	// Metrics is optional; nil disables /metrics and request metrics
	Metrics *observability.Metrics

	// Ready lists the dependencies probed by /ready
	Ready map[string]handlers.Pinger

	RateLimitPerMinute int
	RequestTimeout     time.Duration
	Development        bool
	Version            string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Services == nil {
		return nil, fmt.Errorf("router: services are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if err := RegisterValidators(); err != nil {
		return nil, fmt.Errorf("router: register validators: %w", err)
	}

	switch {
	case gin.Mode() == gin.TestMode:
	case cfg.Development:
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Trace())
	router.Use(middleware.SecureHeaders(cfg.Development))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics(cfg.Metrics))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Version, cfg.Ready)
	router.GET("/health", healthHandler.Live)
	router.GET("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	api.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	api.Use(middleware.UserContext())
	if cfg.IdempotencyEnabled && cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerLedgerRoutes(api, base, cfg.Services)
	registerCatalogRoutes(api, base, cfg.Services)
	registerDocumentRoutes(api, base, cfg.Services)

	return router, nil
}

func registerLedgerRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	stock := handlers.NewStockHandler(base, s.Ledger)
	reportsHandler := handlers.NewReportsHandler(base, s.Reports)

	movements := api.Group("/movements")
	{
		movements.POST("", stock.RecordMovement)
		movements.GET("", stock.ListMovements)
		movements.GET("/:id", stock.GetMovement)
	}

	balances := api.Group("/stock")
	{
		balances.GET("", stock.ListBalances)
		balances.GET("/batches", stock.ListBatches)
		balances.GET("/alerts", reportsHandler.Alerts)
		balances.GET("/balance-sheet", reportsHandler.BalanceSheet)
		balances.GET("/turnover", reportsHandler.Turnover)
		balances.POST("/reconcile", stock.Reconcile)
		balances.GET("/:productId/:warehouseId", stock.GetBalance)
		balances.GET("/:productId/:warehouseId/replay", stock.Replay)
	}
}

func registerCatalogRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	products := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig[*product.Product, dto.ProductRequest]{
		Service:    s.Products.CatalogService,
		EntityName: "product",
		MapCreate:  func(req *dto.ProductRequest) *product.Product { return req.ToEntity() },
		MapUpdate:  func(req *dto.ProductRequest, p *product.Product) *product.Product { return req.ApplyTo(p) },
		VersionOf:  func(req *dto.ProductRequest) int { return req.Version },
	})
	RegisterCatalogRoutes(api.Group("/products"), products)

	warehouses := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig[*warehouse.Warehouse, dto.WarehouseRequest]{
		Service:    s.Warehouses.CatalogService,
		EntityName: "warehouse",
		MapCreate:  func(req *dto.WarehouseRequest) *warehouse.Warehouse { return req.ToEntity() },
		MapUpdate:  func(req *dto.WarehouseRequest, w *warehouse.Warehouse) *warehouse.Warehouse { return req.ApplyTo(w) },
		VersionOf:  func(req *dto.WarehouseRequest) int { return req.Version },
	})
	RegisterCatalogRoutes(api.Group("/warehouses"), warehouses)
}

func registerDocumentRoutes(api *gin.RouterGroup, base *handlers.BaseHandler, s *app.Services) {
	RegisterActionRoutes(api.Group("/grn"), handlers.NewGoodsReceiptHandler(base, s.GoodsReceipts))
	RegisterActionRoutes(api.Group("/cycle-counts"), handlers.NewCycleCountHandler(base, s.CycleCounts))
	RegisterActionRoutes(api.Group("/transfers"), handlers.NewTransferHandler(base, s.Transfers))
	RegisterActionRoutes(api.Group("/reservations"), handlers.NewReservationHandler(base, s.Reservations))
	RegisterActionRoutes(api.Group("/bin-locations"), handlers.NewBinHandler(base, s.Bins))
	RegisterActionRoutes(api.Group("/lots"), handlers.NewLotHandler(base, s.Lots))
}
