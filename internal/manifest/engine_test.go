package manifest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/shared"
)

type memoryRepository struct {
	nextID int64
	perms  map[string]permissions.Permission
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{nextID: 1, perms: make(map[string]permissions.Permission)}
}

func (m *memoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	// Snapshot so a failing sync leaves the stored set untouched.
	snapshot := make(map[string]permissions.Permission, len(m.perms))
	for k, v := range m.perms {
		snapshot[k] = v
	}
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.perms = snapshot
		return err
	}
	return nil
}

type memoryTx memoryRepository

func (t *memoryTx) PermissionsByModule(_ context.Context, module string) ([]permissions.Permission, error) {
	var out []permissions.Permission
	for _, p := range t.perms {
		if p.Module == module {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) Insert(_ context.Context, p permissions.Permission) error {
	if _, ok := t.perms[p.Name]; ok {
		return shared.ErrDuplicateName
	}
	p.ID = t.nextID
	t.nextID++
	t.perms[p.Name] = p
	return nil
}

func (t *memoryTx) UpdateByName(_ context.Context, p permissions.Permission) error {
	existing, ok := t.perms[p.Name]
	if !ok {
		return shared.ErrNotFound
	}
	p.ID = existing.ID
	t.perms[p.Name] = p
	return nil
}

func (t *memoryTx) ForceDeleteByName(_ context.Context, name string) error {
	if _, ok := t.perms[name]; !ok {
		return shared.ErrNotFound
	}
	delete(t.perms, name)
	return nil
}

type countingBump struct{ count int }

func (c *countingBump) Bump(context.Context) error {
	c.count++
	return nil
}

func newTestEngine() (*Engine, *memoryRepository, *countingBump) {
	repo := newMemoryRepository()
	bump := &countingBump{}
	return NewEngine(repo, bump, slog.Default()), repo, bump
}

func seed(t *testing.T, repo *memoryRepository, module string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, (*memoryTx)(repo).Insert(context.Background(), permissions.Permission{
			Name:   name,
			Module: module,
			Guard:  permissions.DefaultGuard,
		}))
	}
}

func TestSyncPartitionsOutcome(t *testing.T) {
	engine, repo, bump := newTestEngine()
	ctx := context.Background()

	seed(t, repo, "billing", "billing.a", "billing.b")

	report, err := engine.Sync(ctx, "billing", []Descriptor{
		{Name: "billing.a", DisplayName: "Billing A"},
		{Name: "billing.d"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"billing.d"}, report.New)
	require.Equal(t, []string{"billing.a"}, report.Updated)
	require.Equal(t, []string{"billing.b"}, report.Removed)
	require.Equal(t, 1, bump.count)

	stored, err := (*memoryTx)(repo).PermissionsByModule(ctx, "billing")
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestSyncEmptyManifestRemovesEverything(t *testing.T) {
	engine, repo, _ := newTestEngine()
	ctx := context.Background()

	seed(t, repo, "billing", "billing.a", "billing.b")

	report, err := engine.Sync(ctx, "billing", nil)
	require.NoError(t, err)
	require.Empty(t, report.New)
	require.Empty(t, report.Updated)
	require.Equal(t, []string{"billing.a", "billing.b"}, report.Removed)

	stored, err := (*memoryTx)(repo).PermissionsByModule(ctx, "billing")
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestSyncRemovesCoreAndGroupedPermissions(t *testing.T) {
	engine, repo, _ := newTestEngine()
	ctx := context.Background()

	// Force deletion bypasses the catalog's is_core guard.
	require.NoError(t, (*memoryTx)(repo).Insert(ctx, permissions.Permission{
		Name:   "billing.core",
		Module: "billing",
		IsCore: true,
	}))

	report, err := engine.Sync(ctx, "billing", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"billing.core"}, report.Removed)
}

func TestSyncPreservesIdentityAndCoreFlagOnUpdate(t *testing.T) {
	engine, repo, _ := newTestEngine()
	ctx := context.Background()

	groupID := int64(4)
	require.NoError(t, (*memoryTx)(repo).Insert(ctx, permissions.Permission{
		Name:    "billing.a",
		Module:  "billing",
		IsCore:  true,
		GroupID: &groupID,
	}))
	before := repo.perms["billing.a"]

	_, err := engine.Sync(ctx, "billing", []Descriptor{{Name: "billing.a", DisplayName: "Billing A"}})
	require.NoError(t, err)

	after := repo.perms["billing.a"]
	require.Equal(t, before.ID, after.ID)
	require.True(t, after.IsCore)
	require.Equal(t, &groupID, after.GroupID)
	require.Equal(t, "Billing A", after.DisplayName)
}

func TestSyncNormalizesDescriptorNames(t *testing.T) {
	engine, repo, _ := newTestEngine()
	ctx := context.Background()

	report, err := engine.Sync(ctx, "billing", []Descriptor{{Name: "Invoices  Approve"}})
	require.NoError(t, err)
	require.Equal(t, []string{"invoices.approve"}, report.New)
	require.Contains(t, repo.perms, "invoices.approve")
}

func TestSyncRejectsDuplicateDescriptors(t *testing.T) {
	engine, repo, bump := newTestEngine()
	ctx := context.Background()

	seed(t, repo, "billing", "billing.a")

	_, err := engine.Sync(ctx, "billing", []Descriptor{
		{Name: "billing.b"},
		{Name: "Billing B"},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, bump.count)

	// The failed sync must leave the stored footprint untouched.
	stored, err := (*memoryTx)(repo).PermissionsByModule(ctx, "billing")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "billing.a", stored[0].Name)
}

func TestSyncRequiresModule(t *testing.T) {
	engine, _, _ := newTestEngine()
	_, err := engine.Sync(context.Background(), "  ", nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}
