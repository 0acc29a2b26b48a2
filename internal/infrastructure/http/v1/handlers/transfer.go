package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/transfer"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles the stock transfer endpoints.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service}
}

// Get handles GET /transfers.
func (h *TransferHandler) Get(c *gin.Context) {
	var q dto.TransferQuery
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

// Create handles POST /transfers.
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
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

// Action handles PUT /transfers.
func (h *TransferHandler) Action(c *gin.Context) {
	var req dto.TransferActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		doc *transfer.Transfer
		err error
	)
	switch req.Action {
	case "approve":
		doc, err = h.service.Approve(ctx, req.ID, req.Notes)
	case "dispatch":
		doc, err = h.service.Dispatch(ctx, req.ID, req.Notes)
	case "receive":
		doc, err = h.service.Receive(ctx, req.ID, req.Received(), req.Notes)
	case "complete":
		doc, err = h.service.Complete(ctx, req.ID, req.Notes)
	case "cancel":
		doc, err = h.service.Cancel(ctx, req.ID, req.Reason)
	default:
		err = unknownAction(req.Action)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, doc)
}

// Delete handles DELETE /transfers?id=.
func (h *TransferHandler) Delete(c *gin.Context) {
	docID, ok := h.QueryID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "transfer deleted")
}
