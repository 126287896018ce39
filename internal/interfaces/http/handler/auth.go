package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/infrastructure/auth"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
)

// AuthHandler handles admin login and logout
type AuthHandler struct {
	BaseHandler
	admin     *auth.AdminAuthenticator
	jwt       *auth.JWTService
	blacklist auth.TokenBlacklist
	logger    *zap.Logger
}

// NewAuthHandler creates a new auth handler. blacklist may be nil, in
// which case logout is a no-op on the server side.
func NewAuthHandler(admin *auth.AdminAuthenticator, jwt *auth.JWTService, blacklist auth.TokenBlacklist, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		admin:     admin,
		jwt:       jwt,
		blacklist: blacklist,
		logger:    log.Named("auth"),
	}
}

// Login godoc
// @Summary      Admin login
// @Description  Exchange admin credentials for an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Admin credentials"
// @Success      200 {object} dto.Response{data=TokenResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	log := logger.L(c.Request.Context(), h.logger)
	if err := h.admin.Authenticate(req.Username, req.Password); err != nil {
		log.Warn("admin login rejected",
			zap.String("username", req.Username),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		h.HandleError(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(req.Username)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	log.Info("admin logged in", zap.String("username", req.Username))
	h.Success(c, TokenResponse{
		AccessToken: token.AccessToken,
		ExpiresAt:   token.ExpiresAt,
		TokenType:   token.TokenType,
	})
}

// Logout godoc
// @Summary      Admin logout
// @Description  Revoke the presented token until it expires
// @Tags         auth
// @Success      204
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if h.blacklist != nil && claims.ID != "" {
		if err := h.blacklist.AddToBlacklist(c.Request.Context(), claims.ID, claims.GetRemainingTTL()); err != nil {
			h.HandleError(c, err)
			return
		}
	}

	logger.L(c.Request.Context(), h.logger).Info("admin logged out",
		zap.String("username", claims.Username),
		zap.String("jti", claims.ID),
	)
	h.NoContent(c)
}

// Me godoc
// @Summary      Current admin
// @Description  Return the authenticated caller
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=CurrentUserResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}
	resp := CurrentUserResponse{Username: claims.Username, Role: claims.Role}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	h.Success(c, resp)
}
