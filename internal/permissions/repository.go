package permissions

import (
	"context"

	"github.com/crewhub/crewhub/internal/shared"
)

// Repository defines data access methods for the permission catalog.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Permission, int, error)
	ListModules(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id int64) (Permission, error)
	GetByName(ctx context.Context, name string) (Permission, error)
	Create(ctx context.Context, p Permission) (Permission, error)
	Update(ctx context.Context, p Permission) (Permission, error)
	// Delete removes the permission row together with any direct staff
	// grants in a single transaction. Role attachments must be checked by
	// the caller beforehand.
	Delete(ctx context.Context, id int64) error
	RoleCount(ctx context.Context, id int64) (int, error)

	ListGroups(ctx context.Context) ([]Group, error)
	GetGroup(ctx context.Context, id int64) (Group, error)
	CreateGroup(ctx context.Context, g Group) (Group, error)
	UpdateGroup(ctx context.Context, g Group) (Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	GroupMemberCount(ctx context.Context, id int64) (int, error)
}
