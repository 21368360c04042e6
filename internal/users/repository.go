package users

import "context"

// Repository defines data access methods for staff accounts and their
// role/permission links.
type Repository interface {
	List(ctx context.Context) ([]Staff, error)
	ListActiveIDs(ctx context.Context) ([]int64, error)
	Get(ctx context.Context, id int64) (Staff, error)
	AssignRole(ctx context.Context, staffID, roleID int64) error
	RemoveRole(ctx context.Context, staffID, roleID int64) error
	GrantPermission(ctx context.Context, staffID, permissionID int64) error
	RevokePermission(ctx context.Context, staffID, permissionID int64) error
	RoleIDs(ctx context.Context, staffID int64) ([]int64, error)
	DirectPermissionIDs(ctx context.Context, staffID int64) ([]int64, error)
}
