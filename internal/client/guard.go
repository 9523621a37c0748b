package client

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/authz"
)

// Outcome is what a guarded page should do.
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeLoading
	OutcomeLogin
	OutcomeUnauthorized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeLoading:
		return "loading"
	case OutcomeLogin:
		return "login"
	case OutcomeUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// ReasonUnverified marks a login redirect for a principal that exists but
// has not verified its email.
const ReasonUnverified = "unverified"

// GuardOptions configures a protected page. AllowedRoles match with OR.
// When both fields are set both must pass.
type GuardOptions struct {
	AllowedRoles       []string
	RequiredPermission string
}

// Decision is the result of Evaluate.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Evaluate decides access to a page for s.
func Evaluate(s Session, opts GuardOptions) Decision {
	if s.Loading {
		return Decision{Outcome: OutcomeLoading}
	}
	if !s.LoggedIn {
		if s.Principal != nil && !s.Principal.Verified {
			return Decision{Outcome: OutcomeLogin, Reason: ReasonUnverified}
		}
		return Decision{Outcome: OutcomeLogin}
	}
	if len(opts.AllowedRoles) > 0 && !authz.MatchAny(s.RoleNames.Slice(), opts.AllowedRoles) {
		return Decision{Outcome: OutcomeUnauthorized}
	}
	if opts.RequiredPermission != "" && !s.HasPermission(opts.RequiredPermission) {
		return Decision{Outcome: OutcomeUnauthorized}
	}
	return Decision{Outcome: OutcomeAllow}
}

// SessionSource supplies the snapshot a guard decides on.
type SessionSource interface {
	Snapshot() Session
}

// ContextSessionKey holds the Session that let a request through.
const ContextSessionKey = "session"

const loadingPage = `<!doctype html><html><head><meta charset="utf-8"><title>Loading</title></head>` +
	`<body><p>Checking your session…</p></body></html>`

// ProtectedRoute wraps console pages. While the session is loading it
// renders a placeholder that refreshes itself; otherwise it redirects to
// /login or /unauthorized, or continues with the session in the context.
func ProtectedRoute(src SessionSource, opts GuardOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := src.Snapshot()
		d := Evaluate(s, opts)
		switch d.Outcome {
		case OutcomeLoading:
			c.Header("Refresh", "1")
			c.Header("Cache-Control", "no-store")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(loadingPage))
			c.Abort()
		case OutcomeLogin:
			q := url.Values{"next": {c.Request.URL.RequestURI()}}
			if d.Reason != "" {
				q.Set("reason", d.Reason)
			}
			c.Redirect(http.StatusFound, "/login?"+q.Encode())
			c.Abort()
		case OutcomeUnauthorized:
			c.Redirect(http.StatusFound, "/unauthorized")
			c.Abort()
		default:
			c.Set(ContextSessionKey, s)
			c.Next()
		}
	}
}

// SessionFrom returns the session stored by ProtectedRoute.
func SessionFrom(c *gin.Context) Session {
	if v, ok := c.Get(ContextSessionKey); ok {
		if s, ok := v.(Session); ok {
			return s
		}
	}
	return Session{}
}
