package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/cycle_count"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// CycleCountHandler handles the cycle count endpoints.
type CycleCountHandler struct {
	*BaseHandler
	service *cycle_count.Service
}

// NewCycleCountHandler creates a new cycle count handler.
func NewCycleCountHandler(base *BaseHandler, service *cycle_count.Service) *CycleCountHandler {
	return &CycleCountHandler{BaseHandler: base, service: service}
}

// Get handles GET /cycle-counts.
func (h *CycleCountHandler) Get(c *gin.Context) {
	var q dto.CycleCountQuery
	if !h.BindQuery(c, &q) {
		return
	}

	if q.ID != "" {
		docID, err := id.ParseField("id", q.ID)
		if err != nil {
			h.Error(c, err)
			return
		}
		doc, err := h.service.GetByID(c.Request.Context(), docID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, doc)
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

// Create handles POST /cycle-counts. The expected quantities are a snapshot
// of the balances at creation.
func (h *CycleCountHandler) Create(c *gin.Context) {
	var req dto.CreateCycleCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, doc)
}

// Action handles PUT /cycle-counts. The short forms "submit" and "apply" are
// accepted for submit_for_approval and apply_adjustments.
func (h *CycleCountHandler) Action(c *gin.Context) {
	var req dto.CycleCountActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		doc *cycle_count.CycleCount
		err error
	)
	switch req.Action {
	case "start":
		doc, err = h.service.Start(ctx, req.ID)
	case "record_counts":
		doc, err = h.service.RecordCounts(ctx, req.ID, req.Entries())
	case "submit_for_approval", "submit":
		doc, err = h.service.SubmitForApproval(ctx, req.ID)
	case "approve":
		doc, err = h.service.Approve(ctx, req.ID, req.Notes)
	case "cancel":
		doc, err = h.service.Cancel(ctx, req.ID, req.Reason)
	case "apply_adjustments", "apply":
		doc, err = h.service.ApplyAdjustments(ctx, req.ID)
	default:
		err = unknownAction(req.Action)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Delete handles DELETE /cycle-counts?id=.
func (h *CycleCountHandler) Delete(c *gin.Context) {
	docID, ok := h.QueryID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "cycle count deleted")
}
