package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain/batches"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// StockHandler serves the ledger: movements, balances and batches.
type StockHandler struct {
	*BaseHandler
	ledger *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, service *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, ledger: service}
}

// RecordMovement handles POST /movements.
// X-Idempotency-Key doubles as the movement idempotency key; a replayed
// movement answers 200 instead of 201.
func (h *StockHandler) RecordMovement(c *gin.Context) {
	var req dto.RecordMovementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.ledger.RecordMovement(c.Request.Context(), req.ToDomain(h.IdempotencyKey(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	if result.Replayed {
		h.OK(c, dto.FromResult(result))
		return
	}
	h.Created(c, dto.FromResult(result))
}

// ListMovements handles GET /movements.
func (h *StockHandler) ListMovements(c *gin.Context) {
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	list, err := h.ledger.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListData(list.ListResult, list.Summary))
}

// GetMovement handles GET /movements/:id.
func (h *StockHandler) GetMovement(c *gin.Context) {
	movementID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	m, err := h.ledger.GetMovement(c.Request.Context(), movementID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, m)
}

// ListBalances handles GET /stock.
func (h *StockHandler) ListBalances(c *gin.Context) {
	var q dto.BalanceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	list, err := h.ledger.ListBalances(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListData(list.ListResult, list.Summary))
}

// GetBalance handles GET /stock/:productId/:warehouseId.
func (h *StockHandler) GetBalance(c *gin.Context) {
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return
	}
	warehouseID, ok := h.PathID(c, "warehouseId")
	if !ok {
		return
	}

	bal, err := h.ledger.GetBalance(c.Request.Context(), productID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, bal)
}

// Replay handles GET /stock/:productId/:warehouseId/replay.
func (h *StockHandler) Replay(c *gin.Context) {
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return
	}
	warehouseID, ok := h.PathID(c, "warehouseId")
	if !ok {
		return
	}

	report, err := h.ledger.Replay(c.Request.Context(), productID, warehouseID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// Reconcile handles POST /stock/reconcile.
func (h *StockHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.ledger.Reconcile(c.Request.Context(), req.ToDomain(h.IdempotencyKey(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{
		"movement":     result.Movement,
		"updatedStock": dto.NewUpdatedStock(result.Balance),
		"liveQuantity": result.LiveQuantity,
		"replayed":     result.Replayed,
	})
}

// ListBatches handles GET /stock/batches.
func (h *StockHandler) ListBatches(c *gin.Context) {
	var (
		filter batches.Filter
		err    error
	)
	if filter.ProductID, err = dto.ParseOptionalID("productId", c.Query("productId")); err != nil {
		h.Error(c, err)
		return
	}
	if filter.WarehouseID, err = dto.ParseOptionalID("warehouseId", c.Query("warehouseId")); err != nil {
		h.Error(c, err)
		return
	}
	filter.Status = batches.Status(c.Query("status"))
	filter.BatchNumber = c.Query("batchNumber")

	if days := c.Query("expiringWithinDays"); days != "" {
		n, convErr := strconv.Atoi(days)
		if convErr != nil || n < 0 {
			h.Error(c, apperror.NewValidation("invalid expiringWithinDays").WithDetail("value", days))
			return
		}
		before := time.Now().Add(time.Duration(n) * 24 * time.Hour)
		filter.ExpiringBefore = &before
	}

	var page dto.PageQuery
	if !h.BindQuery(c, &page) {
		return
	}
	filter.Page = page.Page()

	items, err := h.ledger.ListBatches(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if items == nil {
		items = []*batches.Batch{}
	}
	h.OK(c, gin.H{"items": items})
}
