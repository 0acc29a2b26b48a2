// Package apperror is the error model of the service. Every failure a caller
// can act on is an *AppError carrying a stable code and an HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation = "VALIDATION_ERROR"

	// Business rule codes. All map to 400.
	CodeBusinessRule               = "BUSINESS_RULE_VIOLATION"
	CodeInsufficientStock          = "INSUFFICIENT_STOCK"
	CodeInsufficientAvailableStock = "INSUFFICIENT_AVAILABLE_STOCK"
	CodeOverRelease                = "OVER_RELEASE"
	CodeInvalidStatus              = "INVALID_STATUS"
	CodeIncompleteCount            = "INCOMPLETE_COUNT"
	CodeCapacityExceeded           = "CAPACITY_EXCEEDED"
	CodeBinBlocked                 = "BIN_BLOCKED"
	CodeBinNotEmpty                = "BIN_NOT_EMPTY"
	CodeLotQuantity                = "LOT_QUANTITY_EXCEEDED"
	CodeTransferQuantity           = "TRANSFER_QUANTITY_EXCEEDED"

	CodeNotFound = "NOT_FOUND"

	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
	CodeIdempotencyMismatch    = "IDEMPOTENCY_MISMATCH"
)

// AppError is a classified failure. Err stays server side.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func newError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail sets one detail entry and returns e for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithDetails merges kv into the details.
func (e *AppError) WithDetails(kv map[string]any) *AppError {
	for k, v := range kv {
		e.WithDetail(k, v)
	}
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var target *AppError
	ok := errors.As(err, &target)
	return target, ok
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// HTTPStatus maps err to a status code; unclassified errors are 500.
func HTTPStatus(err error) int {
	if e, ok := AsAppError(err); ok {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries an AppError with code.
func HasCode(err error, code string) bool {
	e, ok := AsAppError(err)
	return ok && e.Code == code
}

func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }
