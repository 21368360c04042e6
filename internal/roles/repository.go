package roles

import (
	"context"

	"github.com/crewhub/crewhub/internal/permissions"
)

// Repository defines data access methods for the role registry.
type Repository interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	// DefaultRole returns the first role flagged as default by insertion
	// order. Multiple defaults are a latent data bug the model does not
	// hard-enforce against; the lowest ID wins.
	DefaultRole(ctx context.Context) (Role, error)
	StaffCount(ctx context.Context, roleID int64) (int, error)
	Permissions(ctx context.Context, roleID int64) ([]permissions.Permission, error)
	// WithTx runs fn against a transactional view of the registry. Any
	// error aborts the transaction leaving role and link rows untouched.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository exposes the mutations that must share one transaction.
type TxRepository interface {
	Insert(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, id int64) error
	PermissionIDs(ctx context.Context, roleID int64) ([]int64, error)
	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error
}
