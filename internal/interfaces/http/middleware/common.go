// Package middleware provides the gin middleware of the sync API.
package middleware

import (
	"github.com/gin-gonic/gin"
)

// Secure sets headers suited to a JSON-only API: no sniffing, no framing
// and no caching of sync state.
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		c.Next()
	}
}
