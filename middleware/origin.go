package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// AllowOrigin reports whether origin matches one of allowed. An empty list
// or "*" admits everything; a missing Origin header is treated as same-site.
func AllowOrigin(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

// Origin rejects websocket upgrades from unknown origins on path.
func Origin(path string, allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && c.Request.URL.Path == path &&
			!AllowOrigin(allowed, c.GetHeader("Origin")) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}
