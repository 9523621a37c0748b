// Package seed loads the default role catalogue from YAML and applies it.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/model"
	"gopkg.in/yaml.v3"
)

// AllPermissions in a role's list grants the whole catalogue.
const AllPermissions = "*"

// Role is one role entry of the seed file.
type Role struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	System      bool     `yaml:"system"`
	Permissions []string `yaml:"permissions"`
}

// File is the seed document.
type File struct {
	Roles []Role `yaml:"roles"`
}

// PermissionNames expands "*" and normalizes every name.
func (r Role) PermissionNames() []string {
	if slices.Contains(r.Permissions, AllPermissions) {
		return model.CatalogNames()
	}
	set := authz.NewSet(r.Permissions)
	names := set.Slice()
	slices.Sort(names)
	return names
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a seed document. Unknown keys, unknown
// permission names and duplicate role names are errors.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed: empty document")
		}
		return nil, fmt.Errorf("seed: %w", err)
	}

	known := authz.NewSet(model.CatalogNames())
	seen := make(authz.Set, len(file.Roles))
	for i := range file.Roles {
		role := &file.Roles[i]
		role.Name = authz.Normalize(role.Name)
		if role.Name == "" {
			return nil, fmt.Errorf("seed: role #%d has no name", i+1)
		}
		if seen.Has(role.Name) {
			return nil, fmt.Errorf("seed: duplicate role %q", role.Name)
		}
		seen[role.Name] = struct{}{}

		for _, p := range role.Permissions {
			if p != AllPermissions && !known.Has(p) {
				return nil, fmt.Errorf("seed: role %q: unknown permission %q", role.Name, p)
			}
		}
	}
	return &file, nil
}

// CatalogSyncer is satisfied by *service.PermissionService.
type CatalogSyncer interface {
	SyncCatalog(ctx context.Context) (int, error)
}

// RoleUpserter is satisfied by *repository.RoleRepository.
type RoleUpserter interface {
	UpsertByName(ctx context.Context, role *model.Role, permissionNames []string) error
}

// Apply syncs the permission catalogue, then every role in file.
func Apply(ctx context.Context, file *File, catalog CatalogSyncer, roles RoleUpserter, log zerolog.Logger) error {
	if _, err := catalog.SyncCatalog(ctx); err != nil {
		return fmt.Errorf("sync catalogue: %w", err)
	}

	for _, r := range file.Roles {
		role := &model.Role{Name: r.Name, Description: r.Description, IsSystem: r.System}
		perms := r.PermissionNames()
		if err := roles.UpsertByName(ctx, role, perms); err != nil {
			return fmt.Errorf("upsert role %q: %w", r.Name, err)
		}
		log.Info().Str("role", role.Name).Str("id", role.ID).Int("permissions", len(perms)).Msg("Role seeded")
	}
	return nil
}
