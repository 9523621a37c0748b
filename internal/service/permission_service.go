package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/model"
)

// PermissionService exposes the permission catalogue.
type PermissionService struct {
	perms PermissionStore
	log   zerolog.Logger
}

// NewPermissionService creates a new PermissionService.
func NewPermissionService(perms PermissionStore, log zerolog.Logger) *PermissionService {
	return &PermissionService{perms: perms, log: log.With().Str("component", "permission_service").Logger()}
}

// List returns every permission, grouped by category.
func (s *PermissionService) List(ctx context.Context) ([]model.Permission, error) {
	return s.perms.List(ctx)
}

// SyncCatalog upserts the built-in permission catalogue.
func (s *PermissionService) SyncCatalog(ctx context.Context) (int, error) {
	n, err := s.perms.Sync(ctx, model.Catalog)
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("count", n).Msg("Permission catalogue synced")
	return n, nil
}
