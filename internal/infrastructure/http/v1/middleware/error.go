package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/infrastructure/idempotency"
	"stockledger/pkg/logger"
)

// ErrorBody is the error envelope written for every failed request.
type ErrorBody struct {
	Error   string         `json:"error"`
	Status  int            `json:"status"`
	Detail  string         `json:"detail"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// If response already written by handler, do not override it.
		if c.Writer.Written() {
			return
		}

		var body ErrorBody
		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error",
					"code", appErr.Code,
					"cause", appErr.Err,
				)
			}
			body = ErrorBody{
				Error:   appErr.Code,
				Status:  appErr.HTTPStatus,
				Detail:  appErr.Message,
				Details: appErr.Details,
			}
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				// The cause stays in the log.
				body.Detail = "Internal server error"
				body.Details = map[string]any{"requestId": c.GetString(ctxRequestID)}
			}
		} else {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			body = ErrorBody{
				Error:   apperror.CodeInternal,
				Status:  http.StatusInternalServerError,
				Detail:  "Internal server error",
				Details: map[string]any{"requestId": c.GetString(ctxRequestID)},
			}
		}

		// Mark idempotency as failed with the exact response we return (best-effort).
		if store, key, ok := idempotencyFrom(c); ok {
			if failErr := store.FailKey(c.Request.Context(), key, body.Status, "application/json", body); failErr != nil {
				logger.Warn(c.Request.Context(), "fail idempotency key", "key", key, "error", failErr)
			}
		}

		c.JSON(body.Status, body)
	}
}

func idempotencyFrom(c *gin.Context) (idempotency.Store, string, bool) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return nil, "", false
	}
	v, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return nil, "", false
	}
	store, ok := v.(idempotency.Store)
	return store, key, ok && store != nil
}
