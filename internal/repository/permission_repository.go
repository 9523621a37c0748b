package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/elearning/internal/model"
)

// PermissionRepository handles the permission catalogue.
type PermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

// List returns every permission ordered for display.
func (r *PermissionRepository) List(ctx context.Context) ([]model.Permission, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, name, description, category FROM permissions ORDER BY category, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perms := []model.Permission{}
	for rows.Next() {
		var p model.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Category); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CountExisting returns how many of ids exist as permissions.
func (r *PermissionRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM permissions WHERE id IN (SELECT unnest($1::text[])::uuid)", ids,
	).Scan(&n)
	return n, err
}

// Sync upserts the catalogue by name and returns how many rows were written.
func (r *PermissionRepository) Sync(ctx context.Context, defs []model.PermissionDef) (int, error) {
	batch := &pgx.Batch{}
	for _, d := range defs {
		batch.Queue(
			`INSERT INTO permissions (name, description, category) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, category = EXCLUDED.category`,
			d.Name, d.Description, d.Category,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range defs {
		tag, err := results.Exec()
		if err != nil {
			return written, err
		}
		written += int(tag.RowsAffected())
	}
	return written, nil
}
