package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for the session token claims.
	ContextKeyClaims = "claims"
	// ContextKeyPrincipal is the Gin context key for the *authz.Principal.
	ContextKeyPrincipal = "principal"
	// ContextKeyPermissions is the Gin context key for the principal's
	// effective permission names as a []string.
	ContextKeyPermissions = "permissions"
)

// TokenValidator is satisfied by *service.AuthService.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.Claims, error)
}

// PrincipalLoader is satisfied by *service.PrincipalService.
type PrincipalLoader interface {
	Load(ctx context.Context, userID string) (*authz.Principal, error)
}

// Authenticate validates the session token and attaches the principal and
// its effective permissions to the context. Unverified principals pass;
// AuthorizePermissions rejects them where a permission is required.
func Authenticate(tokens TokenValidator, principals PrincipalLoader, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := TokenFromRequest(c, cookieName)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.ValidateToken(c.Request.Context(), tokenStr)
		if err != nil {
			if errors.Is(err, service.ErrTokenRevoked) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionRevoked)
				return
			}
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		principal, err := principals.Load(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
				return
			}
			_ = c.Error(err)
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeyPermissions, principal.Permissions)
		c.Next()
	}
}

// TokenFromRequest reads the session token from the cookie, then the
// Authorization header, then the ?token= query used by WebSocket clients.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil && v != "" {
			return v
		}
	}

	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return c.Query("token")
}

// GetClaims retrieves the token claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetPrincipal retrieves the authenticated principal from the Gin context.
func GetPrincipal(c *gin.Context) *authz.Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, ok := val.(*authz.Principal)
	if !ok {
		return nil
	}
	return p
}
