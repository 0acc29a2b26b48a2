package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/bins"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// BinHandler handles the bin location endpoints.
type BinHandler struct {
	*BaseHandler
	service *bins.Service
}

// NewBinHandler creates a new bin handler.
func NewBinHandler(base *BaseHandler, service *bins.Service) *BinHandler {
	return &BinHandler{BaseHandler: base, service: service}
}

// Get handles GET /bin-locations: one bin with ?id, the
// warehouse/zone/rack tree with ?hierarchy=true, a flat list otherwise.
func (h *BinHandler) Get(c *gin.Context) {
	var q dto.BinQuery
	if !h.BindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()

	if q.ID != "" {
		binID, err := id.ParseField("id", q.ID)
		if err != nil {
			h.Error(c, err)
			return
		}
		detail, err := h.service.Get(ctx, binID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, detail)
		return
	}

	filter, err := q.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	if q.Hierarchy {
		tree, err := h.service.Hierarchy(ctx, filter)
		if err != nil {
			h.Error(c, err)
			return
		}
		if tree == nil {
			tree = []bins.WarehouseTree{}
		}
		h.OK(c, gin.H{"warehouses": tree})
		return
	}

	list, err := h.service.List(ctx, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	if list.Items == nil {
		list.Items = []*bins.Bin{}
	}
	h.OK(c, list)
}

// Create handles POST /bin-locations.
func (h *BinHandler) Create(c *gin.Context) {
	var req dto.CreateBinRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if req.BulkCreate {
		created, err := h.service.BulkCreate(ctx, req.ToBulk())
		if err != nil {
			h.Error(c, err)
			return
		}
		h.Created(c, gin.H{"count": len(created), "items": created})
		return
	}

	bin, err := h.service.Create(ctx, req.ToDomain())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, bin)
}

// Action handles PUT /bin-locations.
func (h *BinHandler) Action(c *gin.Context) {
	var req dto.BinActionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	switch req.Action {
	case dto.BinAssignLot:
		if req.LotID == nil {
			h.Error(c, requiredField("lotId"))
			return
		}
		if err := h.service.AssignLot(ctx, *req.LotID, req.BinCode); err != nil {
			h.Error(c, err)
			return
		}
		h.Message(c, "lot assigned to "+req.BinCode)

	case dto.BinMoveLot:
		if req.LotID == nil {
			h.Error(c, requiredField("lotId"))
			return
		}
		if err := h.service.MoveLot(ctx, *req.LotID, req.FromBin, req.ToBin); err != nil {
			h.Error(c, err)
			return
		}
		h.Message(c, "lot moved to "+req.ToBin)

	case dto.BinBlock, dto.BinUnblock, dto.BinUpdate:
		if req.ID == nil {
			h.Error(c, requiredField("id"))
			return
		}
		var (
			bin *bins.Bin
			err error
		)
		switch req.Action {
		case dto.BinBlock:
			bin, err = h.service.Block(ctx, *req.ID, req.Reason)
		case dto.BinUnblock:
			bin, err = h.service.Unblock(ctx, *req.ID)
		default:
			bin, err = h.service.Update(ctx, *req.ID, req.ToUpdate())
		}
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, bin)

	case dto.BinSuggestLocation:
		if req.ProductID == nil {
			h.Error(c, requiredField("productId"))
			return
		}
		suggestions, err := h.service.SuggestLocation(ctx, *req.ProductID, req.SqftRequired, req.WarehouseID)
		if err != nil {
			h.Error(c, err)
			return
		}
		if suggestions == nil {
			suggestions = []bins.Suggestion{}
		}
		h.OK(c, gin.H{"suggestions": suggestions})

	case dto.BinVerifyOccupancy:
		drift, err := h.service.VerifyOccupancy(ctx, req.WarehouseID, req.Repair)
		if err != nil {
			h.Error(c, err)
			return
		}
		if drift == nil {
			drift = []bins.Drift{}
		}
		h.OK(c, gin.H{"drift": drift, "repaired": req.Repair})

	default:
		h.Error(c, unknownAction(req.Action))
	}
}

// Delete handles DELETE /bin-locations?id=. Bins holding lots cannot be
// deleted.
func (h *BinHandler) Delete(c *gin.Context) {
	binID, ok := h.QueryID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), binID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "bin location deleted")
}

func requiredField(field string) error {
	return apperror.NewValidation(field+" is required").WithDetail("field", field)
}
