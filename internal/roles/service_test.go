package roles

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/shared"
)

type memoryRepository struct {
	nextID      int64
	roles       map[int64]Role
	links       map[int64]map[int64]struct{}
	staffCounts map[int64]int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		nextID:      1,
		roles:       make(map[int64]Role),
		links:       make(map[int64]map[int64]struct{}),
		staffCounts: make(map[int64]int),
	}
}

func (m *memoryRepository) List(_ context.Context) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hierarchy < out[j].Hierarchy })
	return out, nil
}

func (m *memoryRepository) Get(_ context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memoryRepository) GetByName(_ context.Context, name string) (Role, error) {
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, shared.ErrNotFound
}

func (m *memoryRepository) DefaultRole(_ context.Context) (Role, error) {
	var ids []int64
	for id, r := range m.roles {
		if r.IsDefault {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Role{}, shared.ErrNotFound
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return m.roles[ids[0]], nil
}

func (m *memoryRepository) StaffCount(_ context.Context, roleID int64) (int, error) {
	return m.staffCounts[roleID], nil
}

func (m *memoryRepository) Permissions(_ context.Context, roleID int64) ([]permissions.Permission, error) {
	var out []permissions.Permission
	for pid := range m.links[roleID] {
		out = append(out, permissions.Permission{ID: pid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, (*memoryTx)(m))
}

type memoryTx memoryRepository

func (t *memoryTx) Insert(_ context.Context, role Role) (Role, error) {
	for _, existing := range t.roles {
		if existing.Name == role.Name {
			return Role{}, shared.ErrDuplicateName
		}
	}
	role.ID = t.nextID
	t.nextID++
	t.roles[role.ID] = role
	return role, nil
}

func (t *memoryTx) Update(_ context.Context, role Role) (Role, error) {
	if _, ok := t.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	t.roles[role.ID] = role
	return role, nil
}

func (t *memoryTx) Delete(_ context.Context, id int64) error {
	if _, ok := t.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(t.roles, id)
	delete(t.links, id)
	return nil
}

func (t *memoryTx) PermissionIDs(_ context.Context, roleID int64) ([]int64, error) {
	var out []int64
	for pid := range t.links[roleID] {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (t *memoryTx) AttachPermission(_ context.Context, roleID, permissionID int64) error {
	if t.links[roleID] == nil {
		t.links[roleID] = make(map[int64]struct{})
	}
	t.links[roleID][permissionID] = struct{}{}
	return nil
}

func (t *memoryTx) DetachPermission(_ context.Context, roleID, permissionID int64) error {
	delete(t.links[roleID], permissionID)
	return nil
}

type countingBump struct{ count int }

func (c *countingBump) Bump(context.Context) error {
	c.count++
	return nil
}

func newTestService() (*Service, *memoryRepository, *countingBump) {
	repo := newMemoryRepository()
	bump := &countingBump{}
	return NewService(repo, bump, slog.Default()), repo, bump
}

func mustPermissionIDs(t *testing.T, repo *memoryRepository, roleID int64) []int64 {
	t.Helper()
	ids, err := (*memoryTx)(repo).PermissionIDs(context.Background(), roleID)
	require.NoError(t, err)
	return ids
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, _ := newTestService()

	role, err := svc.Create(context.Background(), CreateInput{Name: "  Shift_Manager "})
	require.NoError(t, err)
	require.Equal(t, "shift_manager", role.Name)
	require.Equal(t, "Shift Manager", role.DisplayName)
	require.Equal(t, LevelStaff, role.Level)
	require.Equal(t, DefaultHierarchy, role.Hierarchy)
	require.False(t, role.IsSystem)
	require.True(t, role.IsEditable)
}

func TestCreateValidatesHierarchy(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "x", Hierarchy: -5})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, CreateInput{Name: "x", Hierarchy: HierarchyMax + 1})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, CreateInput{Name: "x", Level: Level("owner")})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateWithPermissionsIsAtomic(t *testing.T) {
	svc, repo, bump := newTestService()

	role, err := svc.Create(context.Background(), CreateInput{
		Name:        "auditor",
		Permissions: []int64{10, 20},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20}, mustPermissionIDs(t, repo, role.ID))
	require.Equal(t, 1, bump.count)
}

func TestUpdateRejectsFieldChangeOnNonEditableRole(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	locked, err := (*memoryTx)(repo).Insert(ctx, Role{Name: "admin", IsSystem: true, IsEditable: false, Hierarchy: 10, Level: LevelAdmin})
	require.NoError(t, err)

	display := "Renamed"
	_, err = svc.Update(ctx, locked.ID, UpdateInput{DisplayName: &display})
	require.ErrorIs(t, err, shared.ErrNotEditable)
}

func TestUpdatePermissionSetAllowedOnNonEditableRole(t *testing.T) {
	svc, repo, bump := newTestService()
	ctx := context.Background()

	locked, err := (*memoryTx)(repo).Insert(ctx, Role{Name: "admin", IsSystem: true, IsEditable: false, Hierarchy: 10, Level: LevelAdmin})
	require.NoError(t, err)

	set := []int64{1, 2, 3}
	_, err = svc.Update(ctx, locked.ID, UpdateInput{Permissions: &set})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, mustPermissionIDs(t, repo, locked.ID))
	require.Equal(t, 1, bump.count)
}

func TestSyncPermissionsReplacesSet(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	role, err := svc.Create(ctx, CreateInput{Name: "editor", Permissions: []int64{1, 2}})
	require.NoError(t, err)

	require.NoError(t, svc.SyncPermissions(ctx, role.ID, []int64{2, 3}))
	require.Equal(t, []int64{2, 3}, mustPermissionIDs(t, repo, role.ID))

	// Syncing the identical set is a no-op, not an error.
	require.NoError(t, svc.SyncPermissions(ctx, role.ID, []int64{2, 3}))
	require.Equal(t, []int64{2, 3}, mustPermissionIDs(t, repo, role.ID))
}

func TestGrantAndRevokeAreIdempotent(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	role, err := svc.Create(ctx, CreateInput{Name: "editor"})
	require.NoError(t, err)

	require.NoError(t, svc.GrantPermissions(ctx, role.ID, []int64{7}))
	require.NoError(t, svc.GrantPermissions(ctx, role.ID, []int64{7}))
	require.Equal(t, []int64{7}, mustPermissionIDs(t, repo, role.ID))

	require.NoError(t, svc.RevokePermissions(ctx, role.ID, []int64{7}))
	require.NoError(t, svc.RevokePermissions(ctx, role.ID, []int64{7}))
	require.Empty(t, mustPermissionIDs(t, repo, role.ID))
}

func TestDeleteGuards(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	system, err := (*memoryTx)(repo).Insert(ctx, Role{Name: "super_admin", IsSystem: true, Hierarchy: 1, Level: LevelSuperAdmin})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Delete(ctx, system.ID), shared.ErrSystemRole)

	held, err := svc.Create(ctx, CreateInput{Name: "editor"})
	require.NoError(t, err)
	repo.staffCounts[held.ID] = 3
	require.ErrorIs(t, svc.Delete(ctx, held.ID), shared.ErrInUse)

	repo.staffCounts[held.ID] = 0
	require.NoError(t, svc.Delete(ctx, held.ID))
	_, err = svc.Get(ctx, held.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDefaultRoleLowestIDWins(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "staff", IsDefault: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Name: "trainee", IsDefault: true})
	require.NoError(t, err)

	def, err := svc.DefaultRole(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, def.ID)
}
