package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/roles"
)

// PGRepository provides PostgreSQL backed reads for authorization.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// StaffRoles returns the roles held by a staff account.
func (r *PGRepository) StaffRoles(ctx context.Context, staffID int64) ([]roles.Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ro.id, ro.name, ro.display_name, ro.level, ro.hierarchy, ro.is_system, ro.is_default
		FROM roles ro
		JOIN staff_roles sr ON sr.role_id = ro.id
		WHERE sr.staff_id = $1
		ORDER BY ro.hierarchy`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var held []roles.Role
	for rows.Next() {
		var role roles.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Level, &role.Hierarchy, &role.IsSystem, &role.IsDefault); err != nil {
			return nil, err
		}
		held = append(held, role)
	}
	return held, rows.Err()
}

// RolePermissions returns the permissions granted to a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]permissions.Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.name, p.module, p.guard
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.id`, roleID)
}

// DirectPermissions returns permissions granted to the staff account
// independently of any role.
func (r *PGRepository) DirectPermissions(ctx context.Context, staffID int64) ([]permissions.Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT p.id, p.name, p.module, p.guard
		FROM permissions p
		JOIN staff_permissions sp ON sp.permission_id = p.id
		WHERE sp.staff_id = $1
		ORDER BY p.id`, staffID)
}

func (r *PGRepository) queryPermissions(ctx context.Context, query string, id int64) ([]permissions.Permission, error) {
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []permissions.Permission
	for rows.Next() {
		var p permissions.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Module, &p.Guard); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
