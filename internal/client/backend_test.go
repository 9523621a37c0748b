package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stemsi/elearning/internal/authz"
	ws "github.com/stemsi/elearning/internal/websocket"
)

const sessionCookie = "elearning_token"

type fakeUser struct {
	password    string
	principal   authz.Principal
	permissions []string
}

// fakeBackend answers the three auth endpoints the store uses.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	users    map[string]fakeUser
	sessions map[string]string
	// gate, when set, holds details responses until closed.
	gate    chan struct{}
	started chan struct{}
	// loginGate, when set, holds login responses until closed.
	loginGate    chan struct{}
	loginStarted chan struct{}
	// rawDetails, when set, replaces the details body.
	rawDetails    string
	detailsStatus int
	logoutStatus  int

	// events feeds open event streams; streams counts accepted upgrades.
	events  chan ws.SessionEvent
	streams chan string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:        t,
		users:    map[string]fakeUser{},
		sessions: map[string]string{},
		events:   make(chan ws.SessionEvent, 8),
		streams:  make(chan string, 8),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", b.login)
	mux.HandleFunc("POST /api/v1/auth/logout", b.logout)
	mux.HandleFunc("GET /api/v1/auth/details", b.details)
	mux.HandleFunc("GET /ws/v1/session/events", b.stream)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) baseURL() string { return b.srv.URL + "/api/v1" }

func (b *fakeBackend) eventsURL() string {
	return "ws" + b.srv.URL[len("http"):] + "/ws/v1/session/events"
}

func (b *fakeBackend) setPermissions(email string, perms ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.users[email]
	u.permissions = perms
	b.users[email] = u
}

func (b *fakeBackend) addUser(email, password string, verified bool, roles []string, perms ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	refs := make([]authz.RoleRef, 0, len(roles))
	for _, r := range roles {
		refs = append(refs, authz.RoleRef{ID: uuid.NewString(), Name: r})
	}
	b.users[email] = fakeUser{
		password: password,
		principal: authz.Principal{
			ID:        uuid.NewString(),
			Email:     email,
			FirstName: "Test",
			Roles:     refs,
			RoleNames: roles,
			Verified:  verified,
		},
		permissions: perms,
	}
}

func (b *fakeBackend) holdDetails() (release func(), started <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 1)
	gate := b.gate
	return func() { close(gate) }, b.started
}

func (b *fakeBackend) holdLogin() (release func(), started <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loginGate = make(chan struct{})
	b.loginStarted = make(chan struct{}, 1)
	gate := b.loginGate
	return func() { close(gate) }, b.loginStarted
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "code": code, "message": msg})
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		fail(w, http.StatusBadRequest, "VALIDATION_ERROR", "bad body")
		return
	}
	b.mu.Lock()
	gate, started := b.loginGate, b.loginStarted
	b.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	b.mu.Lock()
	u, ok := b.users[creds.Email]
	if !ok || u.password != creds.Password {
		b.mu.Unlock()
		fail(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	sid := uuid.NewString()
	b.sessions[sid] = creds.Email
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged in"})
}

func (b *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	if c, err := r.Cookie(sessionCookie); err == nil {
		delete(b.sessions, c.Value)
	}
	status := b.logoutStatus
	b.mu.Unlock()

	if status != 0 {
		fail(w, status, "INTERNAL_ERROR", "boom")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (b *fakeBackend) details(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	var user *fakeUser
	if c, err := r.Cookie(sessionCookie); err == nil {
		if email, ok := b.sessions[c.Value]; ok {
			u := b.users[email]
			user = &u
		}
	}
	gate, started := b.gate, b.started
	raw, status := b.rawDetails, b.detailsStatus
	b.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		<-gate
	}

	switch {
	case raw != "":
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(raw))
	case user == nil:
		fail(w, http.StatusUnauthorized, "TOKEN_REQUIRED", "Authentication token is required")
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"user":        user.principal,
			"permissions": user.permissions,
		})
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (b *fakeBackend) stream(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	var email string
	if c, err := r.Cookie(sessionCookie); err == nil {
		email = b.sessions[c.Value]
	}
	b.mu.Unlock()
	if email == "" {
		fail(w, http.StatusUnauthorized, "TOKEN_REQUIRED", "Authentication token is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	b.streams <- email

	for ev := range b.events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
		if ev.Event == ws.EventSessionRevoked {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session revoked"))
			return
		}
	}
}
