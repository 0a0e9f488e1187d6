package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// PrivateCache lets the candidate's browser keep a response for maxAgeSeconds.
// Shared caches must not store it.
func PrivateCache(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("private, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// NoStore marks live session state as uncacheable.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
