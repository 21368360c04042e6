package authz

import (
	"context"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/roles"
)

// Repository defines the read-only queries behind authorization decisions.
type Repository interface {
	StaffRoles(ctx context.Context, staffID int64) ([]roles.Role, error)
	RolePermissions(ctx context.Context, roleID int64) ([]permissions.Permission, error)
	DirectPermissions(ctx context.Context, staffID int64) ([]permissions.Permission, error)
}
