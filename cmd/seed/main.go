package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/database"
	"github.com/stemsi/elearning/internal/logger"
	"github.com/stemsi/elearning/internal/repository"
	"github.com/stemsi/elearning/internal/seed"
	"github.com/stemsi/elearning/internal/service"
)

func main() {
	path := pflag.StringP("file", "f", "seed/roles.yaml", "role catalogue to apply")
	dryRun := pflag.Bool("dry-run", false, "validate the file and print the roles without touching the database")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	file, err := seed.Load(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("Invalid seed file")
	}

	if *dryRun {
		for _, r := range file.Roles {
			fmt.Printf("%-10s system=%-5t %v\n", r.Name, r.System, r.PermissionNames())
		}
		return
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	permService := service.NewPermissionService(repository.NewPermissionRepository(pool), log)
	if err := seed.Apply(ctx, file, permService, repository.NewRoleRepository(pool), log); err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}
	log.Info().Int("roles", len(file.Roles)).Msg("Seed complete")
}
