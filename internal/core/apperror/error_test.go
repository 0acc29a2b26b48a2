package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrappedAppErrorIsFound(t *testing.T) {
	base := NewNotFound("product", "P-1")
	err := fmt.Errorf("load line 3: %w", base)

	got, ok := AsAppError(err)
	require.True(t, ok)
	assert.Same(t, base, got)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
	assert.Equal(t, "P-1", got.Details["id"])
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	assert.False(t, IsAppError(err))
	assert.False(t, HasCode(err, CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Internal server error", err.Message)
	assert.Equal(t, "INTERNAL_ERROR: Internal server error: connection reset", err.Error())
}

func TestInsufficientStockDetails(t *testing.T) {
	err := NewInsufficientStock("p1", 12.5, 10)

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "Insufficient stock. Available: 10, requested: 12.5", err.Message)
	assert.InDelta(t, 2.5, err.Details["shortfall"], 1e-9)
}

func TestInvalidStatusCarriesCurrent(t *testing.T) {
	err := NewInvalidStatus("only draft receipts can be completed", "completed")
	assert.True(t, HasCode(err, CodeInvalidStatus))
	assert.Equal(t, "completed", err.Details["status"])
}
