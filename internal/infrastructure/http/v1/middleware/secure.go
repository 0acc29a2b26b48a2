package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"

	"stockledger/pkg/logger"
)

// SecureHeaders sets the standard security headers on every response.
// Outside development plain HTTP requests are redirected to HTTPS.
func SecureHeaders(development bool) gin.HandlerFunc {
	s := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           !development,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         development,
	})

	return func(c *gin.Context) {
		if err := s.Process(c.Writer, c.Request); err != nil {
			// Process has already written the redirect or rejection.
			logger.Warn(c.Request.Context(), "secure headers blocked request", "error", err)
			c.Abort()
			return
		}
		c.Next()
	}
}
