package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	platformdb "github.com/crewhub/crewhub/internal/platform/db"
	"github.com/crewhub/crewhub/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for the catalog.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const permissionColumns = `id, name, display_name, description, module, permission_group_id, guard, is_core, sort_order, metadata, created_at, updated_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	var meta []byte
	err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Description, &p.Module, &p.GroupID, &p.Guard, &p.IsCore, &p.Order, &meta, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Permission{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return Permission{}, err
		}
	}
	return p, nil
}

// List returns catalog permissions matching the filters plus the total count.
func (r *PGRepository) List(ctx context.Context, filters shared.ListFilters) ([]Permission, int, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM permissions WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	addClause := func(clause string, value interface{}) {
		argCount++
		placeholder := clause + `$` + strconv.Itoa(argCount)
		query += placeholder
		countQuery += placeholder
		args = append(args, value)
	}

	if filters.Search != "" {
		addClause(` AND (name ILIKE `, "%"+filters.Search+"%")
		suffix := ` OR display_name ILIKE $` + strconv.Itoa(argCount) + ` OR description ILIKE $` + strconv.Itoa(argCount) + `)`
		query += suffix
		countQuery += suffix
	}
	if filters.Module != "" {
		addClause(` AND module = `, filters.Module)
	}
	if filters.ExcludeModule != "" {
		addClause(` AND module <> `, filters.ExcludeModule)
	}
	if filters.GroupID != nil {
		addClause(` AND permission_group_id = `, *filters.GroupID)
	}
	if filters.IsCore != nil {
		addClause(` AND is_core = `, *filters.IsCore)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY module, sort_order, name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, 0, err
		}
		perms = append(perms, p)
	}
	return perms, total, rows.Err()
}

// ListModules returns the distinct module values present in the catalog.
func (r *PGRepository) ListModules(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT module FROM permissions ORDER BY module`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var modules []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// Get fetches a permission by ID.
func (r *PGRepository) Get(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.ErrNotFound
	}
	return p, err
}

// GetByName fetches a permission by its normalized name.
func (r *PGRepository) GetByName(ctx context.Context, name string) (Permission, error) {
	p, err := scanPermission(r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE name = $1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.ErrNotFound
	}
	return p, err
}

// Create inserts a new permission.
func (r *PGRepository) Create(ctx context.Context, p Permission) (Permission, error) {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return Permission{}, err
	}
	now := time.Now()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, display_name, description, module, permission_group_id, guard, is_core, sort_order, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+permissionColumns,
		p.Name, p.DisplayName, p.Description, p.Module, p.GroupID, p.Guard, p.IsCore, p.Order, meta, now)
	created, err := scanPermission(row)
	if platformdb.IsUniqueViolation(err) {
		return Permission{}, shared.ErrDuplicateName
	}
	return created, err
}

// Update overwrites a permission row.
func (r *PGRepository) Update(ctx context.Context, p Permission) (Permission, error) {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return Permission{}, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions
		SET name = $2, display_name = $3, description = $4, module = $5, permission_group_id = $6, guard = $7, is_core = $8, sort_order = $9, metadata = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING `+permissionColumns,
		p.ID, p.Name, p.DisplayName, p.Description, p.Module, p.GroupID, p.Guard, p.IsCore, p.Order, meta)
	updated, err := scanPermission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Permission{}, shared.ErrNotFound
	}
	if platformdb.IsUniqueViolation(err) {
		return Permission{}, shared.ErrDuplicateName
	}
	return updated, err
}

// Delete removes the permission and its direct staff grants atomically.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM staff_permissions WHERE permission_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// RoleCount returns how many roles currently hold the permission.
func (r *PGRepository) RoleCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1`, id).Scan(&count)
	return count, err
}

// ListGroups returns all permission groups ordered for display.
func (r *PGRepository) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, slug, name, icon, color, is_active, sort_order, created_at, updated_at FROM permission_groups ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Slug, &g.Name, &g.Icon, &g.Color, &g.IsActive, &g.Order, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroup fetches a permission group by ID.
func (r *PGRepository) GetGroup(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `SELECT id, slug, name, icon, color, is_active, sort_order, created_at, updated_at FROM permission_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Slug, &g.Name, &g.Icon, &g.Color, &g.IsActive, &g.Order, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, shared.ErrNotFound
	}
	return g, err
}

// CreateGroup inserts a new permission group.
func (r *PGRepository) CreateGroup(ctx context.Context, g Group) (Group, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permission_groups (slug, name, icon, color, is_active, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		g.Slug, g.Name, g.Icon, g.Color, g.IsActive, g.Order).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if platformdb.IsUniqueViolation(err) {
		return Group{}, shared.ErrDuplicateName
	}
	return g, err
}

// UpdateGroup overwrites a permission group row.
func (r *PGRepository) UpdateGroup(ctx context.Context, g Group) (Group, error) {
	err := r.pool.QueryRow(ctx, `
		UPDATE permission_groups
		SET slug = $2, name = $3, icon = $4, color = $5, is_active = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		g.ID, g.Slug, g.Name, g.Icon, g.Color, g.IsActive, g.Order).Scan(&g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Group{}, shared.ErrNotFound
	}
	if platformdb.IsUniqueViolation(err) {
		return Group{}, shared.ErrDuplicateName
	}
	return g, err
}

// DeleteGroup removes a permission group by ID.
func (r *PGRepository) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permission_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GroupMemberCount returns how many permissions belong to the group.
func (r *PGRepository) GroupMemberCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE permission_group_id = $1`, id).Scan(&count)
	return count, err
}

func marshalMetadata(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(meta)
}
