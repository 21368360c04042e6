package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewhub/crewhub/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for staff accounts.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns all staff accounts.
func (r *PGRepository) List(ctx context.Context) ([]Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, is_active, created_at, updated_at FROM staff ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var staff []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.Email, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		staff = append(staff, s)
	}
	return staff, rows.Err()
}

// ListActiveIDs returns the IDs of all active staff accounts.
func (r *PGRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM staff WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get fetches a staff account by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Staff, error) {
	var s Staff
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, is_active, created_at, updated_at FROM staff WHERE id = $1`, id).
		Scan(&s.ID, &s.Email, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Staff{}, shared.ErrNotFound
	}
	return s, err
}

// AssignRole links a role to a staff account. Idempotent.
func (r *PGRepository) AssignRole(ctx context.Context, staffID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_roles (staff_id, role_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING`, staffID, roleID)
	return err
}

// RemoveRole unlinks a role from a staff account. Idempotent.
func (r *PGRepository) RemoveRole(ctx context.Context, staffID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM staff_roles WHERE staff_id = $1 AND role_id = $2`, staffID, roleID)
	return err
}

// GrantPermission links a direct permission to a staff account. Idempotent.
func (r *PGRepository) GrantPermission(ctx context.Context, staffID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff_permissions (staff_id, permission_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING`, staffID, permissionID)
	return err
}

// RevokePermission unlinks a direct permission. Idempotent.
func (r *PGRepository) RevokePermission(ctx context.Context, staffID, permissionID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM staff_permissions WHERE staff_id = $1 AND permission_id = $2`, staffID, permissionID)
	return err
}

// RoleIDs returns the role IDs held by a staff account.
func (r *PGRepository) RoleIDs(ctx context.Context, staffID int64) ([]int64, error) {
	return r.scanIDs(ctx, `SELECT role_id FROM staff_roles WHERE staff_id = $1`, staffID)
}

// DirectPermissionIDs returns the directly granted permission IDs.
func (r *PGRepository) DirectPermissionIDs(ctx context.Context, staffID int64) ([]int64, error) {
	return r.scanIDs(ctx, `SELECT permission_id FROM staff_permissions WHERE staff_id = $1`, staffID)
}

func (r *PGRepository) scanIDs(ctx context.Context, query string, staffID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
