package console

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/client"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/handler"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/router"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/service/servicetest"
	"github.com/stemsi/elearning/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

// newAPIServer runs the real API over in-memory stores and miniredis.
func newAPIServer(t *testing.T) (*httptest.Server, *servicetest.DB, *service.AuthService) {
	t.Helper()
	validator.Setup()
	rdb, _ := servicetest.NewRedis(t)
	db := servicetest.NewDB()
	log := zerolog.Nop()
	cfg := &config.Config{
		GinMode:         gin.TestMode,
		JWTSecret:       "console-test",
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

	engine := router.SetupRouter(router.Deps{
		Config:       cfg,
		Tokens:       authService,
		Principals:   principals,
		Metrics:      middleware.NewMetrics(),
		LoginLimiter: limiter,
		Log:          log,
	}, &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, cfg, log),
		User:       handler.NewUserHandler(service.NewUserService(db.Users(), db.Roles(), authService, notifier, log)),
		Role:       handler.NewRoleHandler(service.NewRoleService(db.Roles(), db.Permissions(), notifier, log)),
		Permission: handler.NewPermissionHandler(service.NewPermissionService(db.Permissions(), log)),
		Course:     handler.NewCourseHandler(courseService),
		Curriculum: handler.NewCurriculumHandler(courseService),
		Events:     handler.NewEventsHandler(rdb, log, nil),
		Health:     handler.NewHealthHandler(okPinger{}, rdb),
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, db, authService
}

type consoleEnv struct {
	engine *gin.Engine
	store  *client.Store
	db     *servicetest.DB
	csrf   *http.Cookie
}

func newConsoleEnv(t *testing.T) *consoleEnv {
	t.Helper()
	srv, db, auth := newAPIServer(t)
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)

	admin := db.AddRole(model.RoleAdmin, true,
		model.PermUserRead, model.PermRoleRead, model.PermRoleCreate, model.PermPermissionRead, model.PermCourseRead)
	student := db.AddRole(model.RoleStudent, false, model.PermCourseRead)
	db.AddUser("admin@example.com", hash, true, admin.ID)
	db.AddUser("student@example.com", hash, true, student.ID)
	db.AddUser("new@example.com", hash, false, admin.ID)

	store := client.NewStore(client.NewAPI(srv.URL+"/api/v1", 5*time.Second), zerolog.Nop())
	e := &consoleEnv{
		engine: New(store, zerolog.Nop()).Router(gin.TestMode),
		store:  store,
		db:     db,
	}

	w := e.get("/login")
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			e.csrf = c
		}
	}
	require.NotNil(t, e.csrf, "login page must issue a CSRF cookie")
	return e
}

func (e *consoleEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if e.csrf != nil {
		req.AddCookie(e.csrf)
	}
	return e.send(req)
}

// post submits form the way the console's own pages do: same origin, with
// the CSRF cookie and the matching hidden field.
func (e *consoleEnv) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set(csrfFormField, e.csrf.Value)
	req := newFormRequest(path, form)
	req.Header.Set("Origin", "http://example.com")
	req.AddCookie(e.csrf)
	return e.send(req)
}

func newFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (e *consoleEnv) send(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *consoleEnv) login(t *testing.T, email string) {
	t.Helper()
	w := e.post("/login", url.Values{"email": {email}, "password": {"secret123"}})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
}

func TestPagesShowPlaceholderWhileLoading(t *testing.T) {
	e := newConsoleEnv(t)
	w := e.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("Refresh"))
}

func TestSignedOutRedirectsToLogin(t *testing.T) {
	e := newConsoleEnv(t)
	_, err := e.store.RetrieveDetails(context.Background())
	require.Error(t, err)

	w := e.get("/roles")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Froles", w.Header().Get("Location"))

	w = e.get("/login?next=%2Froles")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="next" value="/roles"`)
}

func TestLoginFailureRendersForm(t *testing.T) {
	e := newConsoleEnv(t)
	w := e.post("/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong-pass"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Sign in")
	assert.False(t, e.store.Snapshot().LoggedIn)
}

func TestUnverifiedLoginStaysOnForm(t *testing.T) {
	e := newConsoleEnv(t)
	w := e.post("/login", url.Values{"email": {"new@example.com"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not verified")

	w = e.get("/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "reason=unverified")
}

func TestAdminSeesRolesAndCanCreate(t *testing.T) {
	e := newConsoleEnv(t)
	e.login(t, "admin@example.com")

	w := e.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `href="/roles"`)
	assert.Contains(t, body, `href="/users"`)
	assert.Contains(t, body, "role:create")

	w = e.get("/roles")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "New role")
	assert.Contains(t, w.Body.String(), model.PermRoleCreate)

	w = e.post("/roles", url.Values{"name": {"Reviewer"}, "description": {"Reviews content"}})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/roles", w.Header().Get("Location"))

	w = e.get("/roles")
	assert.Contains(t, w.Body.String(), "reviewer")

	w = e.post("/roles", url.Values{"name": {"reviewer"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `value="reviewer"`)

	w = e.get("/users")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "student@example.com")
}

func TestStudentIsKeptOutOfAdminPages(t *testing.T) {
	e := newConsoleEnv(t)
	e.login(t, "student@example.com")

	w := e.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `href="/roles"`)
	assert.NotContains(t, w.Body.String(), `href="/users"`)

	for _, path := range []string{"/users", "/roles"} {
		w = e.get(path)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/unauthorized", w.Header().Get("Location"), path)
	}

	w = e.post("/roles", url.Values{"name": {"sneaky"}})
	assert.Equal(t, "/unauthorized", w.Header().Get("Location"))

	w = e.get("/unauthorized")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogoutEndsConsoleSession(t *testing.T) {
	e := newConsoleEnv(t)
	e.login(t, "admin@example.com")

	w := e.post("/logout", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = e.get("/roles")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login")
}

func TestFormsCarryCSRFToken(t *testing.T) {
	e := newConsoleEnv(t)
	w := e.get("/login")
	assert.Contains(t, w.Body.String(), `name="csrf_token" value="`+e.csrf.Value+`"`)
	assert.True(t, e.csrf.HttpOnly)

	e.login(t, "admin@example.com")
	w = e.get("/roles")
	require.Equal(t, http.StatusOK, w.Code)
	// Logout and create-role forms.
	assert.Equal(t, 2, strings.Count(w.Body.String(), `name="csrf_token" value="`+e.csrf.Value+`"`))
}

func TestCrossSiteFormsAreRejected(t *testing.T) {
	e := newConsoleEnv(t)
	e.login(t, "admin@example.com")

	tests := []struct {
		name   string
		origin string
		cookie bool
		token  string
	}{
		{"foreign origin without cookie", "https://evil.example", false, ""},
		{"foreign origin with valid token", "https://evil.example", true, "valid"},
		{"no origin or referer", "", true, "valid"},
		{"missing token", "http://example.com", true, ""},
		{"wrong token", "http://example.com", true, "forged"},
		{"token without cookie", "http://example.com", false, "valid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"name": {"pwned"}}
			switch tt.token {
			case "valid":
				form.Set(csrfFormField, e.csrf.Value)
			case "":
			default:
				form.Set(csrfFormField, tt.token)
			}
			req := newFormRequest("/roles", form)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.cookie {
				req.AddCookie(e.csrf)
			}
			w := e.send(req)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Empty(t, w.Header().Get("Location"))
		})
	}

	w := e.get("/roles")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "pwned")

	// Cross-site logout and identity switches are refused too.
	req := newFormRequest("/logout", url.Values{})
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, e.send(req).Code)

	req = newFormRequest("/login", url.Values{"email": {"student@example.com"}, "password": {"secret123"}})
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, e.send(req).Code)

	assert.True(t, e.store.Snapshot().LoggedIn)
	assert.True(t, e.store.HasRole(model.RoleAdmin))
}

func TestSameOriginAcceptsReferer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/roles", nil)
	req.Header.Set("Referer", "http://example.com/roles")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "null")
	assert.False(t, sameOrigin(req))

	req = httptest.NewRequest(http.MethodPost, "/roles", nil)
	req.Header.Set("Origin", "http://example.com:8090")
	assert.False(t, sameOrigin(req))
}

func TestStaticAssetsAreCacheable(t *testing.T) {
	e := newConsoleEnv(t)
	w := e.get("/static/console.css")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/roles", safeNext("/roles"))
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/", safeNext("https://evil.example"))
	assert.Equal(t, "/", safeNext("//evil.example"))
	assert.Equal(t, "/", safeNext("/login?next=/"))
}
