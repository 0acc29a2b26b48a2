package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/documents/reservation"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ReservationHandler handles the reservation endpoints.
type ReservationHandler struct {
	*BaseHandler
	service *reservation.Service
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(base *BaseHandler, service *reservation.Service) *ReservationHandler {
	return &ReservationHandler{BaseHandler: base, service: service}
}

// Get handles GET /reservations.
func (h *ReservationHandler) Get(c *gin.Context) {
	var q dto.ReservationQuery
	if !h.BindQuery(c, &q) {
		return
	}

	if q.ID != "" {
		resID, err := id.ParseField("id", q.ID)
		if err != nil {
			h.Error(c, err)
			return
		}
		res, err := h.service.Get(c.Request.Context(), resID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, res)
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

// Create handles POST /reservations.
func (h *ReservationHandler) Create(c *gin.Context) {
	var req dto.CreateReservationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), req.ToDomain(h.IdempotencyKey(c)))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// Action handles PUT /reservations.
func (h *ReservationHandler) Action(c *gin.Context) {
	var req dto.ReservationActionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		res *reservation.Reservation
		err error
	)
	switch req.Action {
	case "fulfill":
		res, err = h.service.Fulfill(ctx, req.ID, req.Quantity, req.Notes)
	case "release":
		res, err = h.service.Release(ctx, req.ID, req.Quantity, req.Notes)
	case "extend":
		if req.ExpiresAt == nil {
			err = apperror.NewValidation("expiresAt is required").WithDetail("field", "expiresAt")
			break
		}
		res, err = h.service.Extend(ctx, req.ID, *req.ExpiresAt, req.Notes)
	case "cancel":
		res, err = h.service.Cancel(ctx, req.ID, req.Reason)
	default:
		err = unknownAction(req.Action)
	}
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}
