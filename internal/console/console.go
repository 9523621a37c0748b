// Package console is the operator web UI. Every page is wrapped by
// client.ProtectedRoute and reads data through the signed-in session's
// API client, so the API stays the authority on every request.
package console

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/client"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const contentSecurityPolicy = "default-src 'self'; style-src 'self'; img-src 'self' data:; frame-ancestors 'none'"

// Server renders console pages for one operator session.
type Server struct {
	store *client.Store
	api   *client.API
	log   zerolog.Logger
}

// New creates a console Server on top of store.
func New(store *client.Store, log zerolog.Logger) *Server {
	return &Server{
		store: store,
		api:   store.API(),
		log:   log.With().Str("component", "console").Logger(),
	}
}

type menuItem struct {
	Label      string
	Path       string
	Permission string
}

var menu = []menuItem{
	{Label: "Dashboard", Path: "/"},
	{Label: "Courses", Path: "/courses", Permission: model.PermCourseRead},
	{Label: "Users", Path: "/users", Permission: model.PermUserRead},
	{Label: "Roles", Path: "/roles", Permission: model.PermRoleRead},
}

// menuFor hides entries the session cannot open.
func menuFor(s client.Session) []menuItem {
	out := make([]menuItem, 0, len(menu))
	for _, m := range menu {
		if m.Permission == "" || s.HasPermission(m.Permission) {
			out = append(out, m)
		}
	}
	return out
}

// page is the data every template receives.
type page struct {
	Title   string
	Active  string
	Session client.Session
	Menu    []menuItem
	Flash   string
	Error   string

	CSRF   string
	Next   string
	Reason string
	Email  string

	Permissions []string
	Pagination  *response.Pagination

	Courses       []model.Course
	Course        *model.Course
	CanSeeQuizzes bool
	Lesson        *model.Lesson
	Content       template.HTML

	Users []model.User

	Roles     []model.Role
	Catalog   []model.Permission
	CanCreate bool
	Form      model.RoleRequest
}

func templates() *template.Template {
	funcs := template.FuncMap{
		"join": strings.Join,
		"add":  func(a, b int) int { return a + b },
		"sub":  func(a, b int) int { return a - b },
	}
	return template.Must(template.New("console").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

// Router builds the console's gin engine.
func (s *Server) Router(mode string) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())
	r.Use(middleware.RequestLogger(s.log))
	r.Use(middleware.SecureHeaders(mode != gin.ReleaseMode, contentSecurityPolicy))
	r.SetHTMLTemplate(templates())

	static, _ := fs.Sub(staticFS, "static")
	assets := r.Group("/static")
	assets.Use(middleware.CacheControl(3600))
	assets.StaticFS("/", http.FS(static))

	r.Use(s.csrfProtect())

	r.GET("/login", s.loginPage)
	r.POST("/login", s.login)
	r.POST("/logout", s.logout)
	r.GET("/unauthorized", s.unauthorized)

	pages := r.Group("/")
	pages.Use(middleware.NoStore())
	{
		pages.GET("/", client.ProtectedRoute(s.store, client.GuardOptions{}), s.dashboard)

		pages.GET("/courses", client.ProtectedRoute(s.store, client.GuardOptions{RequiredPermission: model.PermCourseRead}), s.courses)
		pages.GET("/courses/:id", client.ProtectedRoute(s.store, client.GuardOptions{RequiredPermission: model.PermCourseRead}), s.course)
		pages.GET("/lessons/:id", client.ProtectedRoute(s.store, client.GuardOptions{RequiredPermission: model.PermCourseRead}), s.lesson)

		pages.GET("/users", client.ProtectedRoute(s.store, client.GuardOptions{
			AllowedRoles:       []string{model.RoleAdmin},
			RequiredPermission: model.PermUserRead,
		}), s.users)

		pages.GET("/roles", client.ProtectedRoute(s.store, client.GuardOptions{RequiredPermission: model.PermRoleRead}), s.roles)
		pages.POST("/roles", client.ProtectedRoute(s.store, client.GuardOptions{RequiredPermission: model.PermRoleCreate}), s.createRole)
	}

	return r
}

// render fills the shared page fields and writes the template.
func (s *Server) render(c *gin.Context, status int, name string, p page) {
	if p.Session.Principal == nil {
		p.Session = s.store.Snapshot()
	}
	if p.Session.LoggedIn {
		p.Menu = menuFor(p.Session)
	}
	p.CSRF = c.GetString(csrfContextKey)
	c.HTML(status, name, p)
}
