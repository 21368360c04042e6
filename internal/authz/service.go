package authz

import (
	"context"
	"fmt"
	"sort"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/roles"
	"github.com/crewhub/crewhub/internal/shared"
)

// Service answers authorization questions about staff accounts. All reads
// are side-effect free and safe for unbounded concurrent invocation.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService constructs a Service. cache may be nil to disable caching.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// EffectivePermissions returns the deduplicated union of the permissions of
// every held role and the direct grants. Deduplication is by permission
// identity, not name string.
func (s *Service) EffectivePermissions(ctx context.Context, staffID int64) ([]permissions.Permission, error) {
	return s.cache.FetchPermissions(ctx, staffID, func(ctx context.Context) ([]permissions.Permission, error) {
		return s.loadEffective(ctx, staffID)
	})
}

func (s *Service) loadEffective(ctx context.Context, staffID int64) ([]permissions.Permission, error) {
	held, err := s.repo.StaffRoles(ctx, staffID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{})
	var merged []permissions.Permission
	add := func(perms []permissions.Permission) {
		for _, p := range perms {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
		}
	}
	for _, role := range held {
		perms, err := s.repo.RolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		add(perms)
	}
	direct, err := s.repo.DirectPermissions(ctx, staffID)
	if err != nil {
		return nil, err
	}
	add(direct)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Name < merged[j].Name })
	return merged, nil
}

// EffectiveHierarchy returns the minimum hierarchy across held roles, i.e.
// the most privileged one. Staff holding no role sit at HierarchyFloor.
func (s *Service) EffectiveHierarchy(ctx context.Context, staffID int64) (int, error) {
	held, err := s.repo.StaffRoles(ctx, staffID)
	if err != nil {
		return 0, err
	}
	return minHierarchy(held), nil
}

// CanManage reports whether manager may manage target. Holding a
// super_admin level role overrides the hierarchy comparison entirely,
// except against another super admin; otherwise management requires
// strictly greater authority, so equal hierarchy never qualifies.
func (s *Service) CanManage(ctx context.Context, managerID, targetID int64) (bool, error) {
	managerRoles, err := s.repo.StaffRoles(ctx, managerID)
	if err != nil {
		return false, err
	}
	targetRoles, err := s.repo.StaffRoles(ctx, targetID)
	if err != nil {
		return false, err
	}
	if isSuperAdmin(managerRoles) {
		return !isSuperAdmin(targetRoles), nil
	}
	return minHierarchy(managerRoles) < minHierarchy(targetRoles), nil
}

// HasPermission reports whether the staff account's effective set contains
// the named permission.
func (s *Service) HasPermission(ctx context.Context, staffID int64, name string) (bool, error) {
	set, err := s.effectiveNames(ctx, staffID)
	if err != nil {
		return false, err
	}
	_, ok := set[permissions.Normalize(name)]
	return ok, nil
}

// HasAnyPermission reports whether at least one of the named permissions is
// held. An empty requirement list is vacuously satisfied.
func (s *Service) HasAnyPermission(ctx context.Context, staffID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return true, nil
	}
	set, err := s.effectiveNames(ctx, staffID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if _, ok := set[permissions.Normalize(name)]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether every named permission is held.
func (s *Service) HasAllPermissions(ctx context.Context, staffID int64, names ...string) (bool, error) {
	set, err := s.effectiveNames(ctx, staffID)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if _, ok := set[permissions.Normalize(name)]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// HasRole reports whether the staff account holds the named role.
func (s *Service) HasRole(ctx context.Context, staffID int64, name string) (bool, error) {
	return s.HasAnyRole(ctx, staffID, name)
}

// HasAnyRole reports whether at least one of the named roles is held.
func (s *Service) HasAnyRole(ctx context.Context, staffID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return true, nil
	}
	held, err := s.repo.StaffRoles(ctx, staffID)
	if err != nil {
		return false, err
	}
	byName := make(map[string]struct{}, len(held))
	for _, role := range held {
		byName[role.Name] = struct{}{}
	}
	for _, name := range names {
		if _, ok := byName[name]; ok {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizePermission allows when any of the required permissions is held,
// returning ErrForbidden otherwise. OR semantics across the list.
func (s *Service) AuthorizePermission(ctx context.Context, staffID int64, required ...string) error {
	ok, err := s.HasAnyPermission(ctx, staffID, required...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing permission", shared.ErrForbidden)
	}
	return nil
}

// AuthorizeAllPermissions allows only when every required permission is held.
func (s *Service) AuthorizeAllPermissions(ctx context.Context, staffID int64, required ...string) error {
	ok, err := s.HasAllPermissions(ctx, staffID, required...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing permission", shared.ErrForbidden)
	}
	return nil
}

// AuthorizeRole allows when any of the required roles is held.
func (s *Service) AuthorizeRole(ctx context.Context, staffID int64, required ...string) error {
	ok, err := s.HasAnyRole(ctx, staffID, required...)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: missing role", shared.ErrForbidden)
	}
	return nil
}

// Breakdown reports, separately, role-derived grants with their originating
// roles, direct grants, and the merged total. Reads go straight to the
// repository; audit views must not be served stale.
func (s *Service) Breakdown(ctx context.Context, staffID int64) (Breakdown, error) {
	held, err := s.repo.StaffRoles(ctx, staffID)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{FromRoles: make(map[string][]string)}
	all := make(map[int64]string)
	for _, role := range held {
		perms, err := s.repo.RolePermissions(ctx, role.ID)
		if err != nil {
			return Breakdown{}, err
		}
		for _, p := range perms {
			b.FromRoles[p.Name] = append(b.FromRoles[p.Name], role.Name)
			all[p.ID] = p.Name
		}
	}
	direct, err := s.repo.DirectPermissions(ctx, staffID)
	if err != nil {
		return Breakdown{}, err
	}
	for _, p := range direct {
		b.Direct = append(b.Direct, p.Name)
		all[p.ID] = p.Name
	}
	sort.Strings(b.Direct)
	for _, name := range all {
		b.All = append(b.All, name)
	}
	sort.Strings(b.All)
	return b, nil
}

func (s *Service) effectiveNames(ctx context.Context, staffID int64) (map[string]struct{}, error) {
	perms, err := s.EffectivePermissions(ctx, staffID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p.Name] = struct{}{}
	}
	return set, nil
}

func minHierarchy(held []roles.Role) int {
	h := HierarchyFloor
	for _, role := range held {
		if role.Hierarchy < h {
			h = role.Hierarchy
		}
	}
	return h
}

func isSuperAdmin(held []roles.Role) bool {
	for _, role := range held {
		if role.Level == roles.LevelSuperAdmin {
			return true
		}
	}
	return false
}
