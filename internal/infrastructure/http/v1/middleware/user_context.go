package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "stockledger/internal/core/context"
)

// HeaderUserID names the acting user. Authentication happens upstream; the
// value is only recorded on movements and audit entries.
const HeaderUserID = "X-User-ID"

// UserContext puts the acting user into the request context.
// Requests without the header act as "system".
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID != "" {
			if len(userID) > 255 {
				userID = userID[:255]
			}
			ctx := appctx.WithUser(c.Request.Context(), &appctx.UserContext{
				UserID: userID,
				Source: "http",
			})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
