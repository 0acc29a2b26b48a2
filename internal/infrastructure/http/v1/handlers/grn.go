package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/goods_receipt"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// GoodsReceiptHandler handles the GRN endpoints.
type GoodsReceiptHandler struct {
	*BaseHandler
	service *goods_receipt.Service
}

// NewGoodsReceiptHandler creates a new goods receipt handler.
func NewGoodsReceiptHandler(base *BaseHandler, service *goods_receipt.Service) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{BaseHandler: base, service: service}
}

// Get handles GET /grn. With ?id it returns one receipt, otherwise a page.
func (h *GoodsReceiptHandler) Get(c *gin.Context) {
	var q dto.GRNQuery
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

// Create handles POST /grn.
func (h *GoodsReceiptHandler) Create(c *gin.Context) {
	var req dto.CreateGRNRequest
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

// Action handles PUT /grn: receive or cancel.
func (h *GoodsReceiptHandler) Action(c *gin.Context) {
	var req dto.ActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		doc *goods_receipt.GoodsReceipt
		err error
	)
	switch req.Action {
	case "receive":
		doc, err = h.service.Receive(ctx, req.ID)
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

// Delete handles DELETE /grn?id=. Only drafts can be deleted.
func (h *GoodsReceiptHandler) Delete(c *gin.Context) {
	docID, ok := h.QueryID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), docID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "goods receipt deleted")
}
