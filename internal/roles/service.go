package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/shared"
)

// CacheInvalidator drops derived authorization state after registry mutations.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service orchestrates the role registry.
type Service struct {
	repo   Repository
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// CreateInput carries the fields accepted when creating a role.
type CreateInput struct {
	Name        string
	DisplayName string
	Description string
	Level       Level
	Hierarchy   int
	IsDefault   bool
	// Permissions are assigned atomically with role creation when supplied.
	Permissions []int64
}

// UpdateInput carries a partial role update; nil fields are left untouched.
// Permissions, when non-nil, replaces the entire permission set in the same
// transaction regardless of the role's editability flag.
type UpdateInput struct {
	DisplayName *string
	Description *string
	Level       *Level
	Hierarchy   *int
	IsDefault   *bool
	Permissions *[]int64
}

// Create inserts a new role. Roles created through this path are never
// system roles and are always editable; system roles only exist from
// bootstrap seeding.
func (s *Service) Create(ctx context.Context, in CreateInput) (Role, error) {
	name := strings.TrimSpace(strings.ToLower(in.Name))
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = DisplayNameFromName(name)
	}
	level := in.Level
	if level == "" {
		level = LevelStaff
	}
	if !level.Valid() {
		return Role{}, fmt.Errorf("%w: unknown level %q", shared.ErrValidation, level)
	}
	hierarchy := in.Hierarchy
	if hierarchy == 0 {
		hierarchy = DefaultHierarchy
	}
	if hierarchy < HierarchyMin || hierarchy > HierarchyMax {
		return Role{}, fmt.Errorf("%w: hierarchy must be within %d..%d", shared.ErrValidation, HierarchyMin, HierarchyMax)
	}

	var created Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, Role{
			Name:        name,
			DisplayName: display,
			Description: strings.TrimSpace(in.Description),
			Level:       level,
			Hierarchy:   hierarchy,
			IsSystem:    false,
			IsEditable:  true,
			IsDefault:   in.IsDefault,
		})
		if err != nil {
			return err
		}
		for _, pid := range in.Permissions {
			if err := tx.AttachPermission(ctx, created.ID, pid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	if len(in.Permissions) > 0 {
		s.bump(ctx)
	}
	return created, nil
}

// Update applies a partial update. Field mutation is rejected for
// non-editable roles; permission-set replacement is allowed regardless of
// editability, by design. The role name is immutable.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return Role{}, err
	}

	fieldChange := in.DisplayName != nil || in.Description != nil || in.Level != nil || in.Hierarchy != nil || in.IsDefault != nil
	if fieldChange && !role.IsEditable {
		return Role{}, fmt.Errorf("%w: %s", shared.ErrNotEditable, role.Name)
	}
	if in.DisplayName != nil {
		role.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Description != nil {
		role.Description = strings.TrimSpace(*in.Description)
	}
	if in.Level != nil {
		if !in.Level.Valid() {
			return Role{}, fmt.Errorf("%w: unknown level %q", shared.ErrValidation, *in.Level)
		}
		role.Level = *in.Level
	}
	if in.Hierarchy != nil {
		if *in.Hierarchy < HierarchyMin || *in.Hierarchy > HierarchyMax {
			return Role{}, fmt.Errorf("%w: hierarchy must be within %d..%d", shared.ErrValidation, HierarchyMin, HierarchyMax)
		}
		role.Hierarchy = *in.Hierarchy
	}
	if in.IsDefault != nil {
		role.IsDefault = *in.IsDefault
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if fieldChange {
			var err error
			role, err = tx.Update(ctx, role)
			if err != nil {
				return err
			}
		}
		if in.Permissions != nil {
			return syncSet(ctx, tx, role.ID, *in.Permissions)
		}
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	s.bump(ctx)
	return role, nil
}

// Delete removes a role. System roles can never be deleted; roles still
// held by staff are protected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: %s", shared.ErrSystemRole, role.Name)
	}
	count, err := s.repo.StaffCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s is held by %d staff", shared.ErrInUse, role.Name, count)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// SyncPermissions replaces the role's entire permission set with exactly
// the given set. Syncing an identical set is a no-op, not an error.
func (s *Service) SyncPermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return syncSet(ctx, tx, id, permissionIDs)
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// GrantPermissions attaches permissions additively. Granting an already
// held permission is a no-op.
func (s *Service) GrantPermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, pid := range permissionIDs {
			if err := tx.AttachPermission(ctx, id, pid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// RevokePermissions detaches permissions. Revoking an unheld permission is
// a no-op.
func (s *Service) RevokePermissions(ctx context.Context, id int64, permissionIDs []int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, pid := range permissionIDs {
			if err := tx.DetachPermission(ctx, id, pid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Get fetches a role by ID.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// GetByName fetches a role by name.
func (s *Service) GetByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetByName(ctx, name)
}

// List returns all roles ordered by authority rank.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// DefaultRole returns the role assigned to new staff when none is chosen.
func (s *Service) DefaultRole(ctx context.Context) (Role, error) {
	return s.repo.DefaultRole(ctx)
}

// Permissions returns the permissions granted to a role.
func (s *Service) Permissions(ctx context.Context, id int64) ([]permissions.Permission, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Permissions(ctx, id)
}

// syncSet reconciles the stored link rows with the desired set by
// attaching the missing and detaching the surplus.
func syncSet(ctx context.Context, tx TxRepository, roleID int64, permissionIDs []int64) error {
	current, err := tx.PermissionIDs(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if err := tx.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := tx.DetachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("role cache bump", slog.Any("error", err))
	}
}
