package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/database"
	"github.com/stemsi/elearning/internal/handler"
	"github.com/stemsi/elearning/internal/logger"
	"github.com/stemsi/elearning/internal/middleware"
	"github.com/stemsi/elearning/internal/repository"
	"github.com/stemsi/elearning/internal/router"
	"github.com/stemsi/elearning/internal/service"
	"github.com/stemsi/elearning/internal/validator"
	"github.com/stemsi/elearning/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting E-Learning API")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	permRepo := repository.NewPermissionRepository(pool)
	courseRepo := repository.NewCourseRepository(pool)
	curriculumRepo := repository.NewCurriculumRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	principals := service.NewPrincipalService(userRepo, cfg.PermissionCacheSize, cfg.PermissionCacheTTL, log)
	notifier := service.NewNotifier(rdb, principals, log)
	authService := service.NewAuthService(cfg, rdb, userRepo, notifier, log)
	userService := service.NewUserService(userRepo, roleRepo, authService, notifier, log)
	roleService := service.NewRoleService(roleRepo, permRepo, notifier, log)
	permService := service.NewPermissionService(permRepo, log)
	courseService := service.NewCourseService(courseRepo, curriculumRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:       handler.NewAuthHandler(authService, cfg, log),
		User:       handler.NewUserHandler(userService),
		Role:       handler.NewRoleHandler(roleService),
		Permission: handler.NewPermissionHandler(permService),
		Course:     handler.NewCourseHandler(courseService),
		Curriculum: handler.NewCurriculumHandler(courseService),
		Events:     handler.NewEventsHandler(rdb, log, cfg.AllowedOrigins),
		Health:     handler.NewHealthHandler(pool, rdb),
	}

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateInterval)
	defer loginLimiter.Stop()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(router.Deps{
		Config:       cfg,
		Tokens:       authService,
		Principals:   principals,
		Metrics:      middleware.NewMetrics(),
		LoginLimiter: loginLimiter,
		Log:          log,
	}, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Run ───────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	// Role edits elsewhere in the cluster invalidate this node's cache.
	g.Go(func() error {
		principals.Listen(gctx, rdb)
		return nil
	})

	roleWorker := worker.NewRoleChangeWorker(rdb, userRepo, notifier, log)
	g.Go(func() error {
		roleWorker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
