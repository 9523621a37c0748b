package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
)

// SecureHeaders applies the standard security headers. contentSecurityPolicy
// may be empty for JSON-only surfaces.
func SecureHeaders(isDevelopment bool, contentSecurityPolicy string) gin.HandlerFunc {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: contentSecurityPolicy,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         isDevelopment,
	})

	return func(c *gin.Context) {
		// Process has already written the response when it fails.
		if err := sm.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	}
}
