package users

import (
	"context"
	"log/slog"
)

// CacheInvalidator drops derived authorization state after link mutations.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service handles staff account business logic. Role and permission links
// are mutated only through this service so cache invalidation stays
// consistent.
type Service struct {
	repo   Repository
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewService builds a Service instance. cache may be nil.
func NewService(repo Repository, cache CacheInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns all staff accounts.
func (s *Service) List(ctx context.Context) ([]Staff, error) {
	return s.repo.List(ctx)
}

// ListActiveIDs returns the IDs of all active staff accounts.
func (s *Service) ListActiveIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListActiveIDs(ctx)
}

// Get fetches a staff account by ID.
func (s *Service) Get(ctx context.Context, id int64) (Staff, error) {
	return s.repo.Get(ctx, id)
}

// AssignRole links a role to a staff account.
func (s *Service) AssignRole(ctx context.Context, staffID, roleID int64) error {
	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return err
	}
	if err := s.repo.AssignRole(ctx, staffID, roleID); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// RemoveRole unlinks a role from a staff account.
func (s *Service) RemoveRole(ctx context.Context, staffID, roleID int64) error {
	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return err
	}
	if err := s.repo.RemoveRole(ctx, staffID, roleID); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// GrantPermission grants a permission directly, independent of any role.
func (s *Service) GrantPermission(ctx context.Context, staffID, permissionID int64) error {
	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return err
	}
	if err := s.repo.GrantPermission(ctx, staffID, permissionID); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

// RevokePermission removes a direct permission grant.
func (s *Service) RevokePermission(ctx context.Context, staffID, permissionID int64) error {
	if _, err := s.repo.Get(ctx, staffID); err != nil {
		return err
	}
	if err := s.repo.RevokePermission(ctx, staffID, permissionID); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("staff cache bump", slog.Any("error", err))
	}
}
