package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/repository"
)

// RoleService handles business logic for roles.
type RoleService struct {
	roles    RoleStore
	perms    PermissionStore
	notifier *Notifier
	log      zerolog.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(roles RoleStore, perms PermissionStore, notifier *Notifier, log zerolog.Logger) *RoleService {
	return &RoleService{
		roles:    roles,
		perms:    perms,
		notifier: notifier,
		log:      log.With().Str("component", "role_service").Logger(),
	}
}

// List retrieves all roles with their permissions.
func (s *RoleService) List(ctx context.Context) ([]model.Role, error) {
	return s.roles.List(ctx)
}

// Get retrieves a role and its permissions.
func (s *RoleService) Get(ctx context.Context, id string) (*model.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return role, nil
}

// Create creates a role with the given permission set.
func (s *RoleService) Create(ctx context.Context, req model.RoleRequest) (*model.Role, error) {
	permIDs, err := s.checkPermissions(ctx, req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role := &model.Role{Name: authz.Normalize(req.Name), Description: req.Description}
	if err := s.roles.Create(ctx, role, permIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("create role: %w", err)
	}

	s.log.Info().Str("role_id", role.ID).Str("name", role.Name).Int("permissions", len(permIDs)).Msg("Role created")
	return s.Get(ctx, role.ID)
}

// Update renames a role and replaces its permission set. Holders of the
// role are notified so their sessions pick up the new permissions.
func (s *RoleService) Update(ctx context.Context, id string, req model.RoleRequest) (*model.Role, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsSystem {
		return nil, ErrSystemRole
	}

	permIDs, err := s.checkPermissions(ctx, req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role := &model.Role{ID: id, Name: authz.Normalize(req.Name), Description: req.Description}
	if err := s.roles.Update(ctx, role, permIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleNameTaken
		}
		return nil, notFoundOr(err)
	}

	s.notifier.RoleChanged(ctx, id)
	s.log.Info().Str("role_id", id).Str("name", role.Name).Int("permissions", len(permIDs)).Msg("Role updated")
	return s.Get(ctx, id)
}

// Delete removes a role that no user holds.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return ErrSystemRole
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return ErrRoleInUse
		}
		return notFoundOr(err)
	}

	s.log.Info().Str("role_id", id).Str("name", existing.Name).Msg("Role deleted")
	return nil
}

// checkPermissions de-duplicates ids and verifies every one exists.
func (s *RoleService) checkPermissions(ctx context.Context, ids []string) ([]string, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}
	n, err := s.perms.CountExisting(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check permissions: %w", err)
	}
	if n != len(ids) {
		return nil, ErrUnknownPermission
	}
	return ids, nil
}

// uniqueIDs drops duplicates while keeping the first occurrence's position.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = authz.Normalize(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
