package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"

	"stockledger/internal/core/apperror"
)

// CodeRateLimited is returned when a client exceeds its request budget.
const CodeRateLimited = "RATE_LIMITED"

// RateLimit allows perMinute requests per client IP in a sliding window.
// A non-positive perMinute disables limiting.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := httprate.NewRateLimiter(perMinute, time.Minute)

	return func(c *gin.Context) {
		key, err := httprate.KeyByIP(c.Request)
		if err != nil {
			key = c.ClientIP()
		}
		// OnLimit only sets the X-RateLimit headers; ErrorHandler writes the body.
		if limiter.OnLimit(c.Writer, c.Request, key) {
			appErr := apperror.NewBusinessRule(CodeRateLimited, "too many requests")
			appErr.HTTPStatus = http.StatusTooManyRequests
			_ = c.Error(appErr.WithDetail("limitPerMinute", perMinute))
			c.Abort()
			return
		}
		c.Next()
	}
}
