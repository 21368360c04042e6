package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewhub/crewhub/internal/permissions"
	platformdb "github.com/crewhub/crewhub/internal/platform/db"
	"github.com/crewhub/crewhub/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for roles.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const roleColumns = `id, name, display_name, description, level, hierarchy, is_system, is_editable, is_default, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.DisplayName, &r.Description, &r.Level, &r.Hierarchy, &r.IsSystem, &r.IsEditable, &r.IsDefault, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.ErrNotFound
	}
	return r, err
}

// List returns all roles ordered by authority rank.
func (r *PGRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY hierarchy, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Get fetches a role by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetByName fetches a role by its unique name.
func (r *PGRepository) GetByName(ctx context.Context, name string) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// DefaultRole returns the first role flagged as default.
func (r *PGRepository) DefaultRole(ctx context.Context) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE is_default ORDER BY id LIMIT 1`))
}

// StaffCount returns how many staff currently hold the role.
func (r *PGRepository) StaffCount(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staff_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// Permissions returns the permissions granted to the role.
func (r *PGRepository) Permissions(ctx context.Context, roleID int64) ([]permissions.Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, p.display_name, p.module, p.guard, p.is_core
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.module, p.sort_order, p.name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []permissions.Permission
	for rows.Next() {
		var p permissions.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Module, &p.Guard, &p.IsCore); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// WithTx runs fn inside one transaction spanning role and link rows.
func (r *PGRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) Insert(ctx context.Context, role Role) (Role, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO roles (name, display_name, description, level, hierarchy, is_system, is_editable, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING `+roleColumns,
		role.Name, role.DisplayName, role.Description, role.Level, role.Hierarchy, role.IsSystem, role.IsEditable, role.IsDefault)
	created, err := scanRole(row)
	if platformdb.IsUniqueViolation(err) {
		return Role{}, shared.ErrDuplicateName
	}
	return created, err
}

func (t *txRepository) Update(ctx context.Context, role Role) (Role, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE roles
		SET display_name = $2, description = $3, level = $4, hierarchy = $5, is_default = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.DisplayName, role.Description, role.Level, role.Hierarchy, role.IsDefault)
	return scanRole(row)
}

func (t *txRepository) Delete(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepository) PermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
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

func (t *txRepository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

func (t *txRepository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}
