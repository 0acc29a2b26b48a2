package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/infrastructure/idempotency"
)

const (
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLen    = 255
	maxIdempotencyBodyBytes = 1 << 20
)

// Idempotency replays the stored response of a write that repeats a known
// X-Idempotency-Key. A key reused with another body is rejected. Requests
// without the header pass through.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !isWrite(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLen {
			abortWith(c, apperror.NewValidation("idempotency key is too long").WithDetail("header", HeaderIdempotencyKey))
			return
		}

		hash, err := hashBody(c)
		if err != nil {
			abortWith(c, err)
			return
		}

		ctx := c.Request.Context()
		operation := c.Request.Method + " " + c.FullPath()
		replay, err := store.AcquireKey(ctx, key, appctx.GetUserID(ctx), operation, hash)
		if err != nil {
			if !apperror.IsAppError(err) {
				err = apperror.NewInternal(err).WithDetail("component", "idempotency")
			}
			abortWith(c, err)
			return
		}
		if replay != nil {
			c.Header(HeaderReplayed, "true")
			if len(replay.Body) == 0 || replay.StatusCode == http.StatusNoContent {
				c.AbortWithStatus(replay.StatusCode)
				return
			}
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)
		c.Next()
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// hashBody buffers the body, restores it for the handler and returns its
// SHA-256 in hex.
func hashBody(c *gin.Context) (string, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
	if err != nil {
		return "", apperror.NewValidation("unreadable request body")
	}
	if len(body) > maxIdempotencyBodyBytes {
		tooLarge := apperror.NewValidation("request body too large for idempotency").
			WithDetail("max_bytes", maxIdempotencyBodyBytes)
		tooLarge.HTTPStatus = http.StatusRequestEntityTooLarge
		return "", tooLarge
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// CompleteIdempotency records the response of the current request under its
// key. It is a no-op for requests without one.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) error {
	store, key, ok := idempotencyFrom(c)
	if !ok {
		return nil
	}
	return store.CompleteKey(c.Request.Context(), key, statusCode, contentType, response)
}
