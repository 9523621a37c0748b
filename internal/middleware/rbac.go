package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/response"
)

// Authorizer builds permission-checking middleware. Every decision is
// counted in metrics and every denial is written to the audit log.
type Authorizer struct {
	log     zerolog.Logger
	metrics *Metrics
}

// NewAuthorizer creates an Authorizer. metrics may be nil.
func NewAuthorizer(log zerolog.Logger, metrics *Metrics) *Authorizer {
	return &Authorizer{
		log:     log.With().Str("component", "authz").Logger(),
		metrics: metrics,
	}
}

// AuthorizePermissions admits the request when the principal holds at least
// one of perms. It must run after Authenticate.
//
// A missing principal or an unverified one is 401. A permission list that
// is absent or not a []string is 403, as is an empty perms configuration.
// The response never says which permission was missing.
func (a *Authorizer) AuthorizePermissions(perms ...string) gin.HandlerFunc {
	required := append([]string(nil), perms...)
	if len(authz.NewSet(required)) == 0 {
		a.log.Warn().Msg("AuthorizePermissions configured without permissions; every request will be denied")
	}

	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			a.metrics.RecordDecision(OutcomeUnauthenticated)
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !principal.Verified {
			a.metrics.RecordDecision(OutcomeUnverified)
			response.AbortFail(c, http.StatusUnauthorized, response.ErrEmailNotVerified)
			return
		}

		raw, exists := c.Get(ContextKeyPermissions)
		granted, ok := raw.([]string)
		if !exists || !ok {
			a.metrics.RecordDecision(OutcomeMisconfigured)
			a.log.Warn().
				Str("user_id", principal.ID).
				Str("route", c.FullPath()).
				Bool("present", exists).
				Msg("Permission list missing or malformed")
			response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}

		if !authz.MatchAny(granted, required) {
			a.metrics.RecordDecision(OutcomeDenied)
			a.log.Warn().
				Str("user_id", principal.ID).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Strs("required", required).
				Strs("granted", granted).
				Msg("Permission denied")
			response.AbortFail(c, http.StatusForbidden, response.ErrPermissionDenied)
			return
		}

		a.metrics.RecordDecision(OutcomeAllowed)
		c.Next()
	}
}

// RequireVerified admits any verified principal without a permission check.
func (a *Authorizer) RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := GetPrincipal(c)
		if principal == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if !principal.Verified {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrEmailNotVerified)
			return
		}
		c.Next()
	}
}
