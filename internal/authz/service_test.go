package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/roles"
	"github.com/crewhub/crewhub/internal/shared"
)

type memoryRepository struct {
	staffRoles map[int64][]roles.Role
	rolePerms  map[int64][]permissions.Permission
	direct     map[int64][]permissions.Permission
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		staffRoles: make(map[int64][]roles.Role),
		rolePerms:  make(map[int64][]permissions.Permission),
		direct:     make(map[int64][]permissions.Permission),
	}
}

func (m *memoryRepository) StaffRoles(_ context.Context, staffID int64) ([]roles.Role, error) {
	return m.staffRoles[staffID], nil
}

func (m *memoryRepository) RolePermissions(_ context.Context, roleID int64) ([]permissions.Permission, error) {
	return m.rolePerms[roleID], nil
}

func (m *memoryRepository) DirectPermissions(_ context.Context, staffID int64) ([]permissions.Permission, error) {
	return m.direct[staffID], nil
}

func perm(id int64, name string) permissions.Permission {
	return permissions.Permission{ID: id, Name: name}
}

func names(perms []permissions.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Name)
	}
	return out
}

func TestEffectivePermissionsUnion(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{
		{ID: 10, Name: "manager", Hierarchy: 50},
		{ID: 11, Name: "editor", Hierarchy: 100},
	}
	repo.rolePerms[10] = []permissions.Permission{perm(1, "p.one"), perm(2, "p.two")}
	repo.rolePerms[11] = []permissions.Permission{perm(2, "p.two"), perm(3, "p.three")}

	got, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"p.one", "p.three", "p.two"}, names(got))
}

func TestEffectivePermissionsIncludesDirectGrants(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{{ID: 10, Name: "staff", Hierarchy: 100}}
	repo.rolePerms[10] = []permissions.Permission{perm(1, "dashboard.view")}
	repo.direct[1] = []permissions.Permission{perm(2, "reports.export"), perm(1, "dashboard.view")}

	got, err := svc.EffectivePermissions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"dashboard.view", "reports.export"}, names(got))
}

func TestEffectiveHierarchy(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{
		{ID: 10, Name: "manager", Hierarchy: 50},
		{ID: 11, Name: "staff", Hierarchy: 100},
	}

	h, err := svc.EffectiveHierarchy(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 50, h)

	// Roleless staff sit at the floor.
	h, err = svc.EffectiveHierarchy(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, HierarchyFloor, h)
}

func TestCanManage(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{{ID: 10, Name: "manager", Hierarchy: 50, Level: roles.LevelManager}}
	repo.staffRoles[2] = []roles.Role{{ID: 11, Name: "staff", Hierarchy: 100, Level: roles.LevelStaff}}
	repo.staffRoles[3] = []roles.Role{{ID: 10, Name: "manager", Hierarchy: 50, Level: roles.LevelManager}}
	repo.staffRoles[4] = []roles.Role{{ID: 12, Name: "super_admin", Hierarchy: 1, Level: roles.LevelSuperAdmin}}
	repo.staffRoles[5] = []roles.Role{{ID: 12, Name: "super_admin", Hierarchy: 1, Level: roles.LevelSuperAdmin}}

	cases := []struct {
		name            string
		manager, target int64
		want            bool
	}{
		{"strictly higher authority", 1, 2, true},
		{"equal hierarchy never qualifies", 1, 3, false},
		{"lower authority", 2, 1, false},
		{"super admin overrides hierarchy", 4, 1, true},
		{"super admin cannot manage super admin", 4, 5, false},
		{"roleless target sits at floor", 1, 99, true},
		{"roleless manager manages nobody", 99, 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanManage(ctx, tc.manager, tc.target)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestHasPermissionNormalizesName(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{{ID: 10, Name: "staff", Hierarchy: 100}}
	repo.rolePerms[10] = []permissions.Permission{perm(1, "dashboard.view")}

	ok, err := svc.HasPermission(ctx, 1, "Dashboard View")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasPermission(ctx, 1, "dashboard.edit")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasAnyPermissionEmptyListVacuouslyTrue(t *testing.T) {
	svc := NewService(newMemoryRepository(), nil)

	ok, err := svc.HasAnyPermission(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHasAllPermissions(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.direct[1] = []permissions.Permission{perm(1, "a.b"), perm(2, "c.d")}

	ok, err := svc.HasAllPermissions(ctx, 1, "a.b", "c.d")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasAllPermissions(ctx, 1, "a.b", "e.f")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizePermission(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.direct[1] = []permissions.Permission{perm(1, "roles.view")}

	require.NoError(t, svc.AuthorizePermission(ctx, 1, "roles.view", "roles.manage"))
	require.ErrorIs(t, svc.AuthorizePermission(ctx, 1, "roles.manage"), shared.ErrForbidden)
}

func TestAuthorizeRole(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{{ID: 10, Name: "manager", Hierarchy: 50}}

	require.NoError(t, svc.AuthorizeRole(ctx, 1, "manager", "admin"))
	require.ErrorIs(t, svc.AuthorizeRole(ctx, 1, "admin"), shared.ErrForbidden)
}

func TestBreakdownAttributesSources(t *testing.T) {
	repo := newMemoryRepository()
	svc := NewService(repo, nil)
	ctx := context.Background()

	repo.staffRoles[1] = []roles.Role{
		{ID: 10, Name: "manager", Hierarchy: 50},
		{ID: 11, Name: "editor", Hierarchy: 100},
	}
	repo.rolePerms[10] = []permissions.Permission{perm(1, "dashboard.view")}
	repo.rolePerms[11] = []permissions.Permission{perm(1, "dashboard.view"), perm(2, "posts.edit")}
	repo.direct[1] = []permissions.Permission{perm(3, "reports.export")}

	b, err := svc.Breakdown(ctx, 1)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"manager", "editor"}, b.FromRoles["dashboard.view"])
	require.Equal(t, []string{"editor"}, b.FromRoles["posts.edit"])
	require.Equal(t, []string{"reports.export"}, b.Direct)
	require.Equal(t, []string{"dashboard.view", "posts.edit", "reports.export"}, b.All)
}
