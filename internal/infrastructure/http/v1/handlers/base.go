// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/infrastructure/http/v1/dto"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler (single source of truth).
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// PathID parses an id path parameter.
func (h *BaseHandler) PathID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.ParseField(param, c.Param(param))
	if err != nil {
		h.Error(c, err)
		return id.Nil(), false
	}
	return v, true
}

// QueryID parses a required id query parameter.
func (h *BaseHandler) QueryID(c *gin.Context, param string) (id.ID, bool) {
	v, err := id.ParseField(param, c.Query(param))
	if err != nil {
		h.Error(c, err)
		return id.Nil(), false
	}
	return v, true
}

// IdempotencyKey returns the X-Idempotency-Key header.
func (h *BaseHandler) IdempotencyKey(c *gin.Context) string {
	return c.GetHeader(middleware.HeaderIdempotencyKey)
}

// respond writes the envelope and completes the idempotency key with the
// same status and body, so a replay is byte-for-byte equal.
func (h *BaseHandler) respond(c *gin.Context, status int, data any) {
	body := dto.Envelope{Data: data}
	if err := middleware.CompleteIdempotency(c, status, "application/json", body); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "error", err)
	}
	c.JSON(status, body)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	h.respond(c, http.StatusOK, data)
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	h.respond(c, http.StatusCreated, data)
}

// Message sends 200 response with a message.
func (h *BaseHandler) Message(c *gin.Context, msg string) {
	h.respond(c, http.StatusOK, dto.MessageResponse{Message: msg})
}

// NoContent sends 204 response.
func (h *BaseHandler) NoContent(c *gin.Context) {
	// 204 must replay as 204 with empty body.
	if err := middleware.CompleteIdempotency(c, http.StatusNoContent, "", nil); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "error", err)
	}
	c.Status(http.StatusNoContent)
}

// unknownAction reports an unsupported action of an action-based endpoint.
func unknownAction(action string) error {
	return apperror.NewValidation("unknown action").
		WithDetail("field", "action").
		WithDetail("value", action)
}
