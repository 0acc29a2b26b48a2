package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/lots"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// LotHandler handles the lot endpoints.
type LotHandler struct {
	*BaseHandler
	service *lots.Service
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, service *lots.Service) *LotHandler {
	return &LotHandler{BaseHandler: base, service: service}
}

// Get handles GET /lots.
func (h *LotHandler) Get(c *gin.Context) {
	var q dto.LotQuery
	if !h.BindQuery(c, &q) {
		return
	}

	if q.ID != "" {
		lotID, err := id.ParseField("id", q.ID)
		if err != nil {
			h.Error(c, err)
			return
		}
		lot, err := h.service.Get(c.Request.Context(), lotID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, lot)
		return
	}

	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListData(list.ListResult, list.Summary))
}

// Create handles POST /lots. The lot enters the ledger as a goods receipt.
func (h *LotHandler) Create(c *gin.Context) {
	var req dto.CreateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	lot, err := h.service.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, lot)
}

// Action handles PUT /lots.
func (h *LotHandler) Action(c *gin.Context) {
	var req dto.LotActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		lot *lots.Lot
		err error
	)
	switch req.Action {
	case dto.LotReserve:
		lot, err = h.service.Reserve(ctx, req.ID, req.Quantity)
	case dto.LotRelease:
		lot, err = h.service.Release(ctx, req.ID, req.Quantity)
	case dto.LotIssue:
		lot, err = h.service.Issue(ctx, req.ID, req.Quantity)
	case dto.LotQCPass:
		lot, err = h.service.QCPass(ctx, req.ID, req.MoistureContent, req.Notes)
	case dto.LotQCFail:
		lot, err = h.service.QCFail(ctx, req.ID, req.Defects, req.Notes)
	case dto.LotMarkDamaged:
		lot, err = h.service.MarkDamaged(ctx, req.ID, req.Notes)
	case dto.LotUpdateLocation:
		lot, err = h.service.UpdateLocation(ctx, req.ID, req.BinLocation)
	default:
		err = unknownAction(req.Action)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, lot)
}
