package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

const maxRequestIDLen = 64

// RequestIDMiddleware propagates the caller's X-Request-ID, or generates one
// when it is missing or implausibly long, so envelopes and logs correlate.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}
