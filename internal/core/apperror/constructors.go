package apperror

import (
	"fmt"
	"net/http"
	"strconv"
)

func NewValidation(message string) *AppError {
	return newError(http.StatusBadRequest, CodeValidation, message)
}

// NewNotFound reports a missing or soft-deleted record.
func NewNotFound(entity string, key any) *AppError {
	return newError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found: %v", entity, key)).
		WithDetails(map[string]any{"entity": entity, "id": key})
}

// NewBusinessRule builds a 400 with a caller-facing message.
func NewBusinessRule(code, message string) *AppError {
	return newError(http.StatusBadRequest, code, message)
}

// NewInvalidStatus rejects a workflow action not allowed from current.
func NewInvalidStatus(message, current string) *AppError {
	return NewBusinessRule(CodeInvalidStatus, message).WithDetail("status", current)
}

func shortage(code, message, productID string, requested, available float64) *AppError {
	return NewBusinessRule(code, message).WithDetails(map[string]any{
		"productId": productID,
		"requested": requested,
		"available": available,
		"shortfall": requested - available,
	})
}

// NewInsufficientStock is an outbound movement larger than the on-hand stock.
func NewInsufficientStock(productID string, requested, available float64) *AppError {
	msg := fmt.Sprintf("Insufficient stock. Available: %s, requested: %s", qty(available), qty(requested))
	return shortage(CodeInsufficientStock, msg, productID, requested, available)
}

// NewInsufficientAvailableStock is a reservation larger than the unreserved stock.
func NewInsufficientAvailableStock(productID string, requested, available float64) *AppError {
	msg := fmt.Sprintf("Only %s available for reservation", qty(available))
	return shortage(CodeInsufficientAvailableStock, msg, productID, requested, available)
}

func NewOverRelease(productID string, requested, reserved float64) *AppError {
	msg := fmt.Sprintf("Cannot release %s, only %s reserved", qty(requested), qty(reserved))
	return NewBusinessRule(CodeOverRelease, msg).WithDetails(map[string]any{
		"productId": productID,
		"requested": requested,
		"reserved":  reserved,
	})
}

func NewCapacityExceeded(message string, available float64) *AppError {
	return NewBusinessRule(CodeCapacityExceeded, message).WithDetail("available", available)
}

// NewConcurrentModification is a stale optimistic-lock version.
func NewConcurrentModification(entity string, key any) *AppError {
	return newError(http.StatusConflict, CodeConcurrentModification, "Record was modified by another request. Please retry.").
		WithDetails(map[string]any{"entity": entity, "id": key})
}

// NewInternal hides err behind a generic message.
func NewInternal(err error) *AppError {
	return newError(http.StatusInternalServerError, CodeInternal, "Internal server error").WithCause(err)
}

// NewIdempotencyConflict means a request with key is still being processed.
func NewIdempotencyConflict(key string) *AppError {
	return newError(http.StatusConflict, CodeIdempotency, "Operation already in progress").
		WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch means key was first used with a different payload.
func NewIdempotencyMismatch(key string) *AppError {
	return newError(http.StatusConflict, CodeIdempotencyMismatch, "Idempotency key was already used for a different request").
		WithDetail("idempotency_key", key)
}

func NewConflict(message string) *AppError {
	return newError(http.StatusConflict, CodeConflict, message)
}

func NewDuplicate(entity, field, value string) *AppError {
	return newError(http.StatusConflict, CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetails(map[string]any{"entity": entity, "field": field, "value": value})
}

func qty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
