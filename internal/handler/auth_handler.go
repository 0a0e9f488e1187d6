package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// AuthHandler handles token introspection and revocation endpoints.
type AuthHandler struct {
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// RevokeTokenRequest is the body for revoking a token by id.
type RevokeTokenRequest struct {
	JTI       string    `json:"jti" binding:"required,max=64"`
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

// Me godoc
// GET /api/v1/auth/candidate/me and /api/v1/auth/proctor/me
// Returns the identity carried by the current token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	body := gin.H{
		"id":         claims.Subject,
		"name":       claims.Name,
		"token_type": claims.TokenType,
	}
	if claims.ExpiresAt != nil {
		body["expires_at"] = claims.ExpiresAt.Time
	}
	if claims.TokenType == service.TokenTypeProctor {
		scopes := claims.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		body["scopes"] = scopes
	}
	response.Success(c, http.StatusOK, body)
}

// CandidateLogout godoc
// POST /api/v1/auth/candidate/logout
// Revokes the token used for this request.
func (h *AuthHandler) CandidateLogout(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.authService.RevokeToken(c.Request.Context(), claims.ID, until); err != nil {
		h.log.Error().Err(err).Str("candidate_id", claims.Subject).Msg("Failed to revoke token on logout")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// RevokeToken godoc
// POST /api/v1/proctor/tokens/revoke
// Blocks a token id until its expiry, forcing that device to sign in again.
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req RevokeTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.authService.RevokeToken(c.Request.Context(), req.JTI, req.ExpiresAt); err != nil {
		h.log.Error().Err(err).Str("jti", req.JTI).Msg("Failed to revoke token")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.log.Info().Str("jti", req.JTI).Str("proctor_id", claims.Subject).Msg("Token revoked")
	response.Success(c, http.StatusOK, gin.H{"jti": req.JTI})
}
