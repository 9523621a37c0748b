// Package client is the operator console's view of the API: a cookie-carrying
// HTTP client, the session store fed by /auth/details, the permission oracle
// and the route guard wrapping console pages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/elearning/internal/authz"
)

// ErrMalformedResponse is returned when a body is not the expected JSON envelope.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx or success=false answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Code)
}

// envelope is the part every API body shares.
type envelope struct {
	Success *bool  `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DetailsResponse is the body of GET /auth/details.
type DetailsResponse struct {
	Success     bool             `json:"success"`
	User        *authz.Principal `json:"user"`
	Permissions []string         `json:"permissions"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// resetJar is a cookie jar that can be emptied while requests are in flight.
type resetJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newResetJar() *resetJar {
	jar, _ := cookiejar.New(nil)
	return &resetJar{jar: jar}
}

func (j *resetJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

func (j *resetJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

func (j *resetJar) reset() {
	jar, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
}

// API is a JSON client for /api/v1. The session token lives only in the
// cookie jar, the same way a browser holds the HttpOnly cookie.
type API struct {
	baseURL string
	http    *http.Client
	jar     *resetJar
	timeout time.Duration
}

// NewAPI returns a client for baseURL, e.g. http://localhost:8080/api/v1.
func NewAPI(baseURL string, timeout time.Duration) *API {
	jar := newResetJar()
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
		jar:     jar,
		timeout: timeout,
	}
}

// Jar exposes the cookie jar so other transports (the event stream) send
// the same session cookie.
func (a *API) Jar() http.CookieJar { return a.jar }

// ClearCookies forgets the session cookie.
func (a *API) ClearCookies() { a.jar.reset() }

// Do sends body as JSON and decodes the answer into out when out is non-nil.
// Non-2xx statuses and success=false bodies become *APIError.
func (a *API) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Success == nil || !*env.Success {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}
	return nil
}

// Details probes GET /auth/details. A body without a principal id is
// treated as malformed.
func (a *API) Details(ctx context.Context) (*DetailsResponse, error) {
	var out DetailsResponse
	if err := a.Do(ctx, http.MethodGet, "/auth/details", nil, &out); err != nil {
		return nil, err
	}
	if out.User == nil || out.User.ID == "" {
		return nil, fmt.Errorf("%w: details without user id", ErrMalformedResponse)
	}
	return &out, nil
}

// Login posts credentials; the session cookie lands in the jar.
func (a *API) Login(ctx context.Context, creds Credentials) error {
	return a.Do(ctx, http.MethodPost, "/auth/login", creds, nil)
}

// Logout asks the server to revoke the session token.
func (a *API) Logout(ctx context.Context) error {
	return a.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}
