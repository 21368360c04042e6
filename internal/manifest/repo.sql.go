package manifest

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewhub/crewhub/internal/permissions"
	platformdb "github.com/crewhub/crewhub/internal/platform/db"
	"github.com/crewhub/crewhub/internal/shared"
)

// PGRepository provides PostgreSQL backed persistence for reconciliation.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn inside one RepeatableRead transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return platformdb.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) PermissionsByModule(ctx context.Context, module string) ([]permissions.Permission, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, display_name, description, module, permission_group_id, guard, is_core, sort_order
		FROM permissions WHERE module = $1`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []permissions.Permission
	for rows.Next() {
		var p permissions.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Description, &p.Module, &p.GroupID, &p.Guard, &p.IsCore, &p.Order); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (t *txRepository) Insert(ctx context.Context, p permissions.Permission) error {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO permissions (name, display_name, description, module, permission_group_id, guard, is_core, sort_order, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
		p.Name, p.DisplayName, p.Description, p.Module, p.GroupID, p.Guard, p.IsCore, p.Order, meta)
	if platformdb.IsUniqueViolation(err) {
		return shared.ErrDuplicateName
	}
	return err
}

func (t *txRepository) UpdateByName(ctx context.Context, p permissions.Permission) error {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE permissions
		SET display_name = $2, description = $3, module = $4, guard = $5, sort_order = $6, metadata = $7, updated_at = NOW()
		WHERE name = $1`,
		p.Name, p.DisplayName, p.Description, p.Module, p.Guard, p.Order, meta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ForceDeleteByName strips role attachments and direct grants before
// removing the row. No is_core or in-use guard applies on this path.
func (t *txRepository) ForceDeleteByName(ctx context.Context, name string) error {
	var id int64
	if err := t.tx.QueryRow(ctx, `SELECT id FROM permissions WHERE name = $1`, name).Scan(&id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM role_permissions WHERE permission_id = $1`, id); err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM staff_permissions WHERE permission_id = $1`, id); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	return err
}

func marshalMetadata(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return []byte(`{}`), nil
	}
	return json.Marshal(meta)
}
