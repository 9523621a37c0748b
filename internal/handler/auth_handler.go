package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/validator"
)

// AuthHandler handles session endpoints.
type AuthHandler struct {
	authService *service.AuthService
	cfg         *config.Config
	log         zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
		log:         log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password and sets the session cookie. The body carries
// no principal data; clients fetch it from /auth/details.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.authService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.log.Info().Str("ip", c.ClientIP()).Msg("Failed login")
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		failService(c, err)
		return
	}

	token, _, err := h.authService.IssueToken(user.ID)
	if err != nil {
		failService(c, err)
		return
	}

	h.setCookie(c, token, int(h.cfg.JWTExpiry.Seconds()))
	h.log.Info().Str("user_id", user.ID).Msg("Logged in")
	response.Message(c, http.StatusOK, "Logged in")
}

// Details godoc
// GET /api/v1/auth/details
// Returns the authenticated principal and its effective permissions.
// Unverified principals are returned too, with isVerified=false.
func (h *AuthHandler) Details(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":        principal,
		"permissions": principal.Permissions,
	})
}

// Logout godoc
// POST /api/v1/auth/logout
// Revokes the current token if there is one and clears the cookie. Always 200.
func (h *AuthHandler) Logout(c *gin.Context) {
	if tokenStr := middleware.TokenFromRequest(c, h.cfg.CookieName); tokenStr != "" {
		claims, err := h.authService.ValidateToken(c.Request.Context(), tokenStr)
		if err == nil {
			if err := h.authService.Revoke(c.Request.Context(), claims); err != nil {
				h.log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to revoke token")
			}
		}
	}

	h.setCookie(c, "", -1)
	response.Message(c, http.StatusOK, "Logged out")
}

// VerifyEmail godoc
// POST /api/v1/auth/verify-email
// Consumes a verification token.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req model.VerifyEmailRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if _, err := h.authService.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		failService(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Email verified")
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, value, maxAge, "/", h.cfg.CookieDomain, h.cfg.CookieSecure, true)
}
