package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// RejectRevokedTokens checks the JWT's JTI against the revocation list in
// Redis. A proctor revokes a token to force a candidate off a device.
// Lookup failures are logged and let through.
func RejectRevokedTokens(authService *service.AuthService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := authService.CheckRevoked(c.Request.Context(), claims.ID); err != nil {
			if errors.Is(err, service.ErrTokenRevoked) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRevoked)
				return
			}
			log.Warn().Err(err).Str("subject", claims.Subject).Msg("Revocation check failed, allowing request")
		}

		c.Next()
	}
}
