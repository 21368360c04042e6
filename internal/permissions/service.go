package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crewhub/crewhub/internal/shared"
)

// CacheInvalidator drops derived authorization state after catalog mutations.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service orchestrates the permission catalog.
type Service struct {
	repo   Repository
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// CreateInput carries the fields accepted when creating a permission.
type CreateInput struct {
	Name        string
	DisplayName string
	Description string
	Module      string
	GroupID     *int64
	Guard       string
	Order       int
	Metadata    map[string]string
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name        *string
	DisplayName *string
	Description *string
	Module      *string
	GroupID     *int64
	Guard       *string
	Order       *int
	Metadata    map[string]string
}

// Create normalizes the name, applies defaults and inserts the permission.
func (s *Service) Create(ctx context.Context, in CreateInput) (Permission, error) {
	name := Normalize(in.Name)
	if name == "" {
		return Permission{}, fmt.Errorf("%w: permission name required", shared.ErrValidation)
	}
	guard := strings.TrimSpace(in.Guard)
	if guard == "" {
		guard = DefaultGuard
	}
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = name
	}
	return s.repo.Create(ctx, Permission{
		Name:        name,
		DisplayName: display,
		Description: strings.TrimSpace(in.Description),
		Module:      strings.TrimSpace(in.Module),
		GroupID:     in.GroupID,
		Guard:       guard,
		IsCore:      false,
		Order:       in.Order,
		Metadata:    in.Metadata,
	})
}

// Update applies a partial update, re-normalizing the name when supplied.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Permission, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if in.Name != nil {
		name := Normalize(*in.Name)
		if name == "" {
			return Permission{}, fmt.Errorf("%w: permission name required", shared.ErrValidation)
		}
		p.Name = name
	}
	if in.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Module != nil {
		p.Module = strings.TrimSpace(*in.Module)
	}
	if in.GroupID != nil {
		p.GroupID = in.GroupID
	}
	if in.Guard != nil {
		p.Guard = strings.TrimSpace(*in.Guard)
	}
	if in.Order != nil {
		p.Order = *in.Order
	}
	if in.Metadata != nil {
		p.Metadata = in.Metadata
	}
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Permission{}, err
	}
	s.bump(ctx)
	return updated, nil
}

// Delete removes a permission. Core permissions and permissions still held
// by a role are protected; the protected paths never reach the row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsCore {
		return fmt.Errorf("%w: %s is a core permission", shared.ErrForbidden, p.Name)
	}
	count, err := s.repo.RoleCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s is held by %d role(s)", shared.ErrInUse, p.Name, count)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// Get fetches a permission by ID.
func (s *Service) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.Get(ctx, id)
}

// List returns catalog permissions. Without the elevated capability the
// reserved admins module is hidden; the rows still exist.
func (s *Service) List(ctx context.Context, elevated bool, filters shared.ListFilters) ([]Permission, int, error) {
	if !elevated {
		if filters.Module == ModuleAdmins {
			return nil, 0, nil
		}
		filters.ExcludeModule = ModuleAdmins
	}
	return s.repo.List(ctx, filters)
}

// ListModules returns distinct modules, subject to the same visibility rule.
func (s *Service) ListModules(ctx context.Context, elevated bool) ([]string, error) {
	modules, err := s.repo.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	if elevated {
		return modules, nil
	}
	visible := modules[:0]
	for _, m := range modules {
		if m != ModuleAdmins {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// GroupInput carries the fields accepted when creating or updating a group.
type GroupInput struct {
	Name     string
	Icon     string
	Color    string
	IsActive bool
	Order    int
}

// CreateGroup derives the slug from the name and inserts the group.
func (s *Service) CreateGroup(ctx context.Context, in GroupInput) (Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: group name required", shared.ErrValidation)
	}
	return s.repo.CreateGroup(ctx, Group{
		Slug:     SlugifyGroup(name),
		Name:     name,
		Icon:     strings.TrimSpace(in.Icon),
		Color:    strings.TrimSpace(in.Color),
		IsActive: in.IsActive,
		Order:    in.Order,
	})
}

// UpdateGroup overwrites a group, re-deriving the slug from the name.
func (s *Service) UpdateGroup(ctx context.Context, id int64, in GroupInput) (Group, error) {
	g, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: group name required", shared.ErrValidation)
	}
	g.Name = name
	g.Slug = SlugifyGroup(name)
	g.Icon = strings.TrimSpace(in.Icon)
	g.Color = strings.TrimSpace(in.Color)
	g.IsActive = in.IsActive
	g.Order = in.Order
	return s.repo.UpdateGroup(ctx, g)
}

// DeleteGroup removes a group once no permission belongs to it.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	count, err := s.repo.GroupMemberCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: group still holds %d permission(s)", shared.ErrInUse, count)
	}
	return s.repo.DeleteGroup(ctx, id)
}

// ListGroups returns all permission groups.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// GetGroup fetches a permission group by ID.
func (s *Service) GetGroup(ctx context.Context, id int64) (Group, error) {
	return s.repo.GetGroup(ctx, id)
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("permission cache bump", slog.Any("error", err))
	}
}
