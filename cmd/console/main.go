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
	"github.com/spf13/pflag"
	"github.com/stemsi/elearning/internal/client"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/console"
	"github.com/stemsi/elearning/internal/logger"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.LoadConsole()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Flags override the environment.
	pflag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "console listen address")
	pflag.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "API base URL, including /api/v1")
	pflag.StringVar(&cfg.EventsURL, "events-url", cfg.EventsURL, "session events WebSocket URL")
	pflag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request API timeout")
	pflag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("api", cfg.APIBaseURL).
		Msg("Starting E-Learning Console")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(cfg.APIBaseURL, cfg.RequestTimeout)
	store := client.NewStore(api, log)
	listener := client.NewListener(store, cfg.EventsURL, log)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           console.New(store, log).Router(cfg.GinMode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Resolve the initial loading state; without a cookie this settles on
	// signed out.
	g.Go(func() error {
		if _, err := store.RetrieveDetails(gctx); err != nil {
			log.Debug().Err(err).Msg("No session yet")
		}
		return nil
	})

	g.Go(func() error {
		listener.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Console listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Console stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Console stopped")
}
