package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// RequireTestScope checks that the proctor JWT covers the test named by the
// given route param. A "*" scope covers every test.
func RequireTestScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		testID := c.Param(param)
		for _, s := range claims.Scopes {
			if s == service.ScopeAllTests || s == testID {
				c.Next()
				return
			}
		}

		response.AbortFail(c, http.StatusForbidden, response.ErrForbidden)
	}
}
