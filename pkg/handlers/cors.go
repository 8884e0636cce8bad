package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// originSet is the configured origin allowlist. Empty allows everything.
type originSet map[string]struct{}

func newOriginSet(origins []string) originSet {
	set := make(originSet, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if len(s) == 0 || origin == "" {
		return true
	}
	if _, ok := s["*"]; ok {
		return true
	}
	_, ok := s[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}

// CORS answers preflight requests and tags responses for allowed origins.
func CORS(origins originSet) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && origins.allows(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
