package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/handler"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/service/servicetest"
	"github.com/stemsi/elearning/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type testServer struct {
	engine *gin.Engine
	db     *servicetest.DB
	auth   *service.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	validator.Setup()
	rdb, _ := servicetest.NewRedis(t)
	db := servicetest.NewDB()
	log := zerolog.Nop()
	cfg := &config.Config{
		GinMode:         gin.TestMode,
		JWTSecret:       "router-test",
		JWTExpiry:       time.Hour,
		BcryptCost:      bcrypt.MinCost,
		CookieName:      "elearning_token",
		VerificationTTL: time.Hour,
	}

	principals := service.NewPrincipalService(db.Users(), 64, time.Minute, log)
	notifier := service.NewNotifier(rdb, principals, log)
	authService := service.NewAuthService(cfg, rdb, db.Users(), notifier, log)
	limiter := middleware.NewRateLimiter(100, time.Minute)
	t.Cleanup(limiter.Stop)

	courseService := service.NewCourseService(nil, nil, log)
	engine := SetupRouter(Deps{
		Config:       cfg,
		Tokens:       authService,
		Principals:   principals,
		Metrics:      middleware.NewMetrics(),
		LoginLimiter: limiter,
		Log:          log,
	}, &Handlers{
		Auth:       handler.NewAuthHandler(authService, cfg, log),
		User:       handler.NewUserHandler(service.NewUserService(db.Users(), db.Roles(), authService, notifier, log)),
		Role:       handler.NewRoleHandler(service.NewRoleService(db.Roles(), db.Permissions(), notifier, log)),
		Permission: handler.NewPermissionHandler(service.NewPermissionService(db.Permissions(), log)),
		Course:     handler.NewCourseHandler(courseService),
		Curriculum: handler.NewCurriculumHandler(courseService),
		Events:     handler.NewEventsHandler(rdb, log, nil),
		Health:     handler.NewHealthHandler(okPinger{}, rdb),
	})
	return &testServer{engine: engine, db: db, auth: authService}
}

func (s *testServer) addUser(t *testing.T, email string, verified bool, roleIDs ...string) model.User {
	t.Helper()
	hash, err := s.auth.HashPassword("secret123")
	require.NoError(t, err)
	return s.db.AddUser(email, hash, verified, roleIDs...)
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (s *testServer) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, body)
	for _, c := range w.Result().Cookies() {
		if c.Name == "elearning_token" {
			assert.True(t, c.HttpOnly)
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	s.addUser(t, "a@example.com", true)

	w, body := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "a@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(response.ErrInvalidCredentials), body["code"])
}

func TestLoginValidatesBody(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields, _ := body["fields"].(map[string]any)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestDetailsReturnsPrincipalAndPermissions(t *testing.T) {
	s := newTestServer(t)
	teacher := s.db.AddRole("teacher", false, "course:read", "course:update")
	u := s.addUser(t, "t@example.com", true, teacher.ID)
	cookie := s.login(t, "t@example.com")

	w, body := s.do(t, http.MethodGet, "/api/v1/auth/details", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, u.ID, user["_id"])
	assert.Equal(t, true, user["isVerified"])
	assert.ElementsMatch(t, []any{"course:read", "course:update"}, body["permissions"])
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestDetailsWithoutSession(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/api/v1/auth/details", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(response.ErrTokenRequired), body["code"])
}

func TestUnverifiedUserSeesDetailsButNoResources(t *testing.T) {
	s := newTestServer(t)
	admin := s.db.AddRole("admin", true, model.PermPermissionRead)
	s.addUser(t, "new@example.com", false, admin.ID)
	cookie := s.login(t, "new@example.com")

	w, body := s.do(t, http.MethodGet, "/api/v1/auth/details", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["user"].(map[string]any)["isVerified"])

	w, body = s.do(t, http.MethodGet, "/api/v1/permissions", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(response.ErrEmailNotVerified), body["code"])
}

func TestPermissionGatedRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.db.AddRole("admin", true, model.PermRoleRead, model.PermRoleCreate)
	student := s.db.AddRole("student", false, model.PermCourseRead)
	s.addUser(t, "admin@example.com", true, admin.ID)
	s.addUser(t, "s@example.com", true, student.ID)

	adminCookie := s.login(t, "admin@example.com")
	studentCookie := s.login(t, "s@example.com")

	w, body := s.do(t, http.MethodGet, "/api/v1/roles", nil, studentCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(response.ErrPermissionDenied), body["code"])
	assert.NotContains(t, w.Body.String(), model.PermRoleRead)

	w, body = s.do(t, http.MethodGet, "/api/v1/roles", nil, adminCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["roles"], 2)

	w, body = s.do(t, http.MethodPost, "/api/v1/roles", gin.H{"name": "Reviewer"}, adminCookie)
	require.Equal(t, http.StatusCreated, w.Code, body)
	assert.Equal(t, "reviewer", body["role"].(map[string]any)["name"])

	w, body = s.do(t, http.MethodPost, "/api/v1/roles", gin.H{"name": "reviewer"}, adminCookie)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(response.ErrConflict), body["code"])
}

func TestRoleRoutesRejectMalformedIDs(t *testing.T) {
	s := newTestServer(t)
	admin := s.db.AddRole("admin", true, model.PermRoleRead)
	s.addUser(t, "admin@example.com", true, admin.ID)
	cookie := s.login(t, "admin@example.com")

	w, body := s.do(t, http.MethodGet, "/api/v1/roles/not-a-uuid", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(response.ErrInvalidID), body["code"])
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	s.addUser(t, "a@example.com", true)
	cookie := s.login(t, "a@example.com")

	w, _ := s.do(t, http.MethodPost, "/api/v1/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodGet, "/api/v1/auth/details", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(response.ErrSessionRevoked), body["code"])
}

func TestLogoutWithoutSessionStillSucceeds(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
}

func TestRoleChangeReachesNextRequest(t *testing.T) {
	s := newTestServer(t)
	admin := s.db.AddRole("admin", true, model.PermUserUpdate, model.PermRoleRead)
	student := s.db.AddRole("student", false, model.PermCourseRead)
	reviewer := s.db.AddRole("reviewer", false, model.PermRoleRead)
	s.addUser(t, "admin@example.com", true, admin.ID)
	u := s.addUser(t, "s@example.com", true, student.ID)

	adminCookie := s.login(t, "admin@example.com")
	studentCookie := s.login(t, "s@example.com")

	w, _ := s.do(t, http.MethodGet, "/api/v1/roles", nil, studentCookie)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, body := s.do(t, http.MethodPut, "/api/v1/users/"+u.ID+"/roles", gin.H{"roles": []string{reviewer.ID}}, adminCookie)
	require.Equal(t, http.StatusOK, w.Code, body)

	w, _ = s.do(t, http.MethodGet, "/api/v1/roles", nil, studentCookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get(response.HeaderRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
