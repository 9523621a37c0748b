package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/handler"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	User       *handler.UserHandler
	Role       *handler.RoleHandler
	Permission *handler.PermissionHandler
	Course     *handler.CourseHandler
	Curriculum *handler.CurriculumHandler
	Events     *handler.EventsHandler
	Health     *handler.HealthHandler
}

// Deps carries the cross-cutting pieces the routes need.
type Deps struct {
	Config       *config.Config
	Tokens       middleware.TokenValidator
	Principals   middleware.PrincipalLoader
	Metrics      *middleware.Metrics
	LoginLimiter *middleware.RateLimiter
	Log          zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(deps Deps, handlers *Handlers) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all so dev works without extra config. Credentials
	// need explicit origins, so AllowOriginFunc echoes any origin in dev.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so every log line and response carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(deps.Metrics.Middleware())
	router.Use(middleware.SecureHeaders(cfg.GinMode != gin.ReleaseMode, ""))

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", deps.Metrics.Handler())

	authn := middleware.Authenticate(deps.Tokens, deps.Principals, cfg.CookieName)
	authz := middleware.NewAuthorizer(deps.Log, deps.Metrics)
	can := authz.AuthorizePermissions

	// ─── 1. Auth Group ─────────────────────────────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(middleware.NoStore())
	{
		auth.POST("/login", deps.LoginLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/logout", handlers.Auth.Logout)
		auth.POST("/verify-email", handlers.Auth.VerifyEmail)
		auth.GET("/details", authn, handlers.Auth.Details)
	}

	// ─── 2. WebSocket Group ────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(authn, authz.RequireVerified())
	{
		ws.GET("/session/events", handlers.Events.SessionEvents)
	}

	// ─── 3. API Group (Auth + RBAC) ────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(authn)
	{
		// Permission catalogue
		api.GET("/permissions", can(model.PermPermissionRead), handlers.Permission.ListPermissions)

		// Roles
		api.GET("/roles", can(model.PermRoleRead), handlers.Role.ListRoles)
		api.GET("/roles/:id", can(model.PermRoleRead), handlers.Role.GetRole)
		api.POST("/roles", can(model.PermRoleCreate), handlers.Role.CreateRole)
		api.PUT("/roles/:id", can(model.PermRoleUpdate), handlers.Role.UpdateRole)
		api.DELETE("/roles/:id", can(model.PermRoleDelete), handlers.Role.DeleteRole)

		// Users
		api.GET("/users", can(model.PermUserRead), handlers.User.ListUsers)
		api.GET("/users/:id", can(model.PermUserRead), handlers.User.GetUser)
		api.POST("/users", can(model.PermUserCreate), handlers.User.CreateUser)
		api.PUT("/users/:id", can(model.PermUserUpdate), handlers.User.UpdateUser)
		api.PUT("/users/:id/roles", can(model.PermUserUpdate, model.PermRoleUpdate), handlers.User.AssignRoles)
		api.POST("/users/:id/verify", can(model.PermUserVerify), handlers.User.VerifyUser)
		api.DELETE("/users/:id", can(model.PermUserDelete), handlers.User.DeleteUser)

		// Courses
		api.GET("/courses", can(model.PermCourseRead), handlers.Course.ListCourses)
		api.GET("/courses/:id", can(model.PermCourseRead), handlers.Course.GetCourse)
		api.POST("/courses", can(model.PermCourseCreate), handlers.Course.CreateCourse)
		api.PUT("/courses/:id", can(model.PermCourseUpdate), handlers.Course.UpdateCourse)
		api.PUT("/courses/:id/publish", can(model.PermCoursePublish), handlers.Course.PublishCourse)
		api.DELETE("/courses/:id", can(model.PermCourseDelete), handlers.Course.DeleteCourse)

		// Sections
		api.GET("/courses/:id/sections", can(model.PermCourseRead), handlers.Course.ListSections)
		api.POST("/courses/:id/sections", can(model.PermCurriculumWrite), handlers.Course.CreateSection)
		api.PUT("/courses/:id/sections/order", can(model.PermCurriculumWrite), handlers.Course.ReorderSections)
		api.PUT("/sections/:id", can(model.PermCurriculumWrite), handlers.Course.UpdateSection)
		api.DELETE("/sections/:id", can(model.PermCurriculumDelete), handlers.Course.DeleteSection)

		// Modules
		api.GET("/sections/:id/modules", can(model.PermCourseRead), handlers.Curriculum.ListModules)
		api.POST("/sections/:id/modules", can(model.PermCurriculumWrite), handlers.Curriculum.CreateModule)
		api.PUT("/sections/:id/modules/order", can(model.PermCurriculumWrite), handlers.Curriculum.ReorderModules)
		api.PUT("/modules/:id", can(model.PermCurriculumWrite), handlers.Curriculum.UpdateModule)
		api.DELETE("/modules/:id", can(model.PermCurriculumDelete), handlers.Curriculum.DeleteModule)

		// Lessons
		api.GET("/modules/:id/lessons", can(model.PermCourseRead), handlers.Curriculum.ListLessons)
		api.POST("/modules/:id/lessons", can(model.PermCurriculumWrite), handlers.Curriculum.CreateLesson)
		api.PUT("/modules/:id/lessons/order", can(model.PermCurriculumWrite), handlers.Curriculum.ReorderLessons)
		api.GET("/lessons/:id", can(model.PermCourseRead), handlers.Curriculum.GetLesson)
		api.PUT("/lessons/:id", can(model.PermCurriculumWrite), handlers.Curriculum.UpdateLesson)
		api.DELETE("/lessons/:id", can(model.PermCurriculumDelete), handlers.Curriculum.DeleteLesson)

		// Quizzes
		api.GET("/modules/:id/quizzes", can(model.PermQuizRead), handlers.Curriculum.ListQuizzes)
		api.POST("/modules/:id/quizzes", can(model.PermQuizWrite), handlers.Curriculum.CreateQuiz)
		api.PUT("/modules/:id/quizzes/order", can(model.PermQuizWrite), handlers.Curriculum.ReorderQuizzes)
		api.GET("/quizzes/:id", can(model.PermQuizRead), handlers.Curriculum.GetQuiz)
		api.PUT("/quizzes/:id", can(model.PermQuizWrite), handlers.Curriculum.UpdateQuiz)
		api.DELETE("/quizzes/:id", can(model.PermQuizDelete), handlers.Curriculum.DeleteQuiz)
	}

	return router
}
