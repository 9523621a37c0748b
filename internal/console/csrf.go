package console

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookieName = "console_csrf"
	// csrfFormField is the hidden form field carrying the token.
	csrfFormField  = "csrf_token"
	csrfContextKey = "csrf_token"
	csrfMaxAge     = 12 * 60 * 60
)

func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// sameOrigin reports whether the request's Origin (or Referer when Origin is
// absent) names this host. Requests carrying neither are refused.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.Header.Get("Referer")
	}
	if origin == "" || origin == "null" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// csrfProtect issues a double-submit token cookie on safe requests. Unsafe
// requests must come from this host and echo the cookie's token in the
// csrf_token form field.
func (s *Server) csrfProtect() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(csrfCookieName)
		if err != nil {
			token = ""
		}

		if isSafeMethod(c.Request.Method) {
			if token == "" {
				if token, err = newCSRFToken(); err != nil {
					s.log.Error().Err(err).Msg("Failed to generate CSRF token")
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				http.SetCookie(c.Writer, &http.Cookie{
					Name:     csrfCookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   csrfMaxAge,
					HttpOnly: true,
					Secure:   c.Request.TLS != nil,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(csrfContextKey, token)
			c.Next()
			return
		}

		if !sameOrigin(c.Request) {
			s.rejectForgery(c, "origin not allowed")
			return
		}
		form := c.PostForm(csrfFormField)
		if token == "" || form == "" || subtle.ConstantTimeCompare([]byte(token), []byte(form)) != 1 {
			s.rejectForgery(c, "csrf token mismatch")
			return
		}
		c.Set(csrfContextKey, token)
		c.Next()
	}
}

func (s *Server) rejectForgery(c *gin.Context, reason string) {
	s.log.Warn().
		Str("path", c.Request.URL.Path).
		Str("origin", c.GetHeader("Origin")).
		Str("reason", reason).
		Msg("Rejected cross-site form submission")
	s.render(c, http.StatusForbidden, "error.html", page{
		Title: "Request rejected",
		Error: "The form expired or was submitted from another site. Reload the page and try again.",
	})
	c.Abort()
}
