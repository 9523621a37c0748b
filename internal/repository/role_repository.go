package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearning/internal/model"
)

// RoleRepository handles role and role-permission data access.
type RoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

const roleSelect = `
	SELECT r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at,
	       (SELECT COUNT(*) FROM user_roles ur WHERE ur.role_id = r.id)
	FROM roles r`

func scanRole(row pgx.Row) (*model.Role, error) {
	role := &model.Role{Permissions: []model.Permission{}}
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsSystem,
		&role.CreatedAt, &role.UpdatedAt, &role.UserCount)
	return role, err
}

// List retrieves all roles with their permissions in two queries.
func (r *RoleRepository) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx, roleSelect+" ORDER BY r.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []model.Role{}
	index := map[string]int{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		index[role.ID] = len(roles)
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permRows, err := r.pool.Query(ctx,
		`SELECT rp.role_id, p.id, p.name, p.description, p.category
		 FROM role_permissions rp
		 JOIN permissions p ON p.id = rp.permission_id
		 ORDER BY p.category, p.name`)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()

	for permRows.Next() {
		var roleID string
		var p model.Permission
		if err := permRows.Scan(&roleID, &p.ID, &p.Name, &p.Description, &p.Category); err != nil {
			return nil, err
		}
		if i, ok := index[roleID]; ok {
			roles[i].Permissions = append(roles[i].Permissions, p)
		}
	}
	return roles, permRows.Err()
}

// GetByID retrieves a role and its permissions.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*model.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, roleSelect+" WHERE r.id = $1", id))
	if err != nil {
		return nil, classify(err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.description, p.category
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1
		 ORDER BY p.category, p.name`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category); err != nil {
			return nil, err
		}
		role.Permissions = append(role.Permissions, p)
	}
	return role, rows.Err()
}

// Create inserts a role and its permission set in one transaction.
func (r *RoleRepository) Create(ctx context.Context, role *model.Role, permissionIDs []string) error {
	return classify(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, description, is_system) VALUES ($1, $2, $3)
			 RETURNING id, created_at, updated_at`,
			role.Name, role.Description, role.IsSystem,
		).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			return err
		}
		return insertRolePermissions(ctx, tx, role.ID, permissionIDs)
	}))
}

// Update renames a role and replaces its permission set.
func (r *RoleRepository) Update(ctx context.Context, role *model.Role, permissionIDs []string) error {
	return classify(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"UPDATE roles SET name = $1, description = $2, updated_at = NOW() WHERE id = $3",
			role.Name, role.Description, role.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", role.ID); err != nil {
			return err
		}
		return insertRolePermissions(ctx, tx, role.ID, permissionIDs)
	}))
}

// Delete removes a role. Fails with ErrInUse while users still hold it.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountExisting returns how many of ids exist as roles.
func (r *RoleRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM roles WHERE id IN (SELECT unnest($1::text[])::uuid)", ids,
	).Scan(&n)
	return n, err
}

// UpsertByName creates or refreshes a role by name and sets its permissions
// by permission name. Used by the seed command.
func (r *RoleRepository) UpsertByName(ctx context.Context, role *model.Role, permissionNames []string) error {
	return classify(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO roles (name, description, is_system) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO UPDATE
			 SET description = EXCLUDED.description, is_system = EXCLUDED.is_system, updated_at = NOW()
			 RETURNING id, created_at, updated_at`,
			role.Name, role.Description, role.IsSystem,
		).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM role_permissions WHERE role_id = $1", role.ID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id)
			 SELECT $1, id FROM permissions WHERE name = ANY($2::text[])`,
			role.ID, permissionNames)
		return err
	}))
}

func insertRolePermissions(ctx context.Context, tx pgx.Tx, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id)
		 SELECT $1, unnest($2::text[])::uuid
		 ON CONFLICT DO NOTHING`,
		roleID, permissionIDs,
	)
	return err
}
