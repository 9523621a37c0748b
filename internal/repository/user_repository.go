package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearning/internal/authz"
	"github.com/stemsi/elearning/internal/model"
)

// UserRepository handles user and role-assignment data access.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userSelect = `
	SELECT u.id, u.email, u.first_name, u.last_name, u.password_hash, u.is_verified,
	       u.created_at, u.updated_at,
	       COALESCE(array_agg(r.id::text ORDER BY r.name) FILTER (WHERE r.id IS NOT NULL), '{}'),
	       COALESCE(array_agg(r.name::text ORDER BY r.name) FILTER (WHERE r.id IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	var roleIDs, roleNames []string
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.IsVerified,
		&u.CreatedAt, &u.UpdatedAt, &roleIDs, &roleNames)
	if err != nil {
		return nil, err
	}
	u.Roles = make([]authz.RoleRef, len(roleIDs))
	for i := range roleIDs {
		u.Roles[i] = authz.RoleRef{ID: roleIDs[i], Name: roleNames[i]}
	}
	u.RoleNames = roleNames
	return u, nil
}

// GetByID retrieves a user and their roles.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1 GROUP BY u.id`, id))
	return u, classify(err)
}

// GetByEmail retrieves a user by their unique email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.email = $1 GROUP BY u.id`, strings.ToLower(email)))
	return u, classify(err)
}

// List returns a page of users and the total count matching the filter.
func (r *UserRepository) List(ctx context.Context, f model.UserFilter) ([]model.User, int, error) {
	var conds []string
	var args []any
	if f.RoleID != "" {
		args = append(args, f.RoleID)
		conds = append(conds, fmt.Sprintf("u.id IN (SELECT user_id FROM user_roles WHERE role_id = $%d)", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(u.email ILIKE $%d OR u.first_name ILIKE $%d OR u.last_name ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users u"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	query := userSelect + where + fmt.Sprintf(" GROUP BY u.id ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	return users, total, rows.Err()
}

// Create inserts a user together with their initial roles.
func (r *UserRepository) Create(ctx context.Context, u *model.User, roleIDs []string) error {
	return classify(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (email, first_name, last_name, password_hash, is_verified)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at, updated_at`,
			strings.ToLower(u.Email), u.FirstName, u.LastName, u.PasswordHash, u.IsVerified,
		).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return err
		}
		return insertUserRoles(ctx, tx, u.ID, roleIDs)
	}))
}

// Update changes profile fields. A non-empty passwordHash replaces the password.
func (r *UserRepository) Update(ctx context.Context, u *model.User, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET email = $1, first_name = $2, last_name = $3,
		     password_hash = COALESCE(NULLIF($4, ''), password_hash), updated_at = NOW()
		 WHERE id = $5`,
		strings.ToLower(u.Email), u.FirstName, u.LastName, passwordHash, u.ID,
	)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceRoles swaps the user's role assignment in one transaction.
func (r *UserRepository) ReplaceRoles(ctx context.Context, userID string, roleIDs []string) error {
	return classify(pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
			return err
		}
		if err := insertUserRoles(ctx, tx, userID, roleIDs); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, "UPDATE users SET updated_at = NOW() WHERE id = $1", userID)
		return err
	}))
}

func insertUserRoles(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, unnest($2::text[])::uuid
		 ON CONFLICT DO NOTHING`,
		userID, roleIDs,
	)
	return err
}

// SetVerified updates the verification flag.
func (r *UserRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	tag, err := r.pool.Exec(ctx, "UPDATE users SET is_verified = $1, updated_at = NOW() WHERE id = $2", verified, id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user. Role assignments cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EffectivePermissions returns the union of permission names over all roles
// assigned to the user.
func (r *UserRepository) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.name
		 FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN user_roles ur ON ur.role_id = rp.role_id
		 WHERE ur.user_id = $1
		 ORDER BY p.name`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	permissions := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		permissions = append(permissions, name)
	}
	return permissions, rows.Err()
}

// IDsByRole lists the users holding a role.
func (r *UserRepository) IDsByRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT user_id FROM user_roles WHERE role_id = $1", roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
