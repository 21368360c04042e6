package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/crewhub/crewhub/internal/permissions"
	"github.com/crewhub/crewhub/internal/shared"
)

// Repository defines the transactional storage surface the engine needs.
type Repository interface {
	// WithTx runs fn inside one transaction; any error leaves the module's
	// permission footprint untouched.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

// TxRepository exposes the reconciliation mutations.
type TxRepository interface {
	PermissionsByModule(ctx context.Context, module string) ([]permissions.Permission, error)
	Insert(ctx context.Context, p permissions.Permission) error
	UpdateByName(ctx context.Context, p permissions.Permission) error
	// ForceDeleteByName removes the permission row together with its role
	// attachments and direct staff grants. It deliberately bypasses the
	// is_core and in-use protections of the catalog's delete path: the
	// manifest is authoritative. Callers must treat removals as
	// irreversible.
	ForceDeleteByName(ctx context.Context, name string) error
}

// CacheInvalidator drops derived authorization state after a sync.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Report partitions the outcome of one sync run for operator reporting.
type Report struct {
	ID      string   `json:"id"`
	Module  string   `json:"module"`
	New     []string `json:"new"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
}

// Engine diffs a module's desired permission list against the stored set
// and applies the minimal create/update/delete plan in one transaction.
type Engine struct {
	repo   Repository
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewEngine builds an Engine instance. cache may be nil.
func NewEngine(repo Repository, cache CacheInvalidator, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, cache: cache, logger: logger}
}

// Sync replaces the module's entire permission footprint with the desired
// descriptors. Names are normalized before comparison; stored permissions
// absent from the manifest are removed unconditionally.
func (e *Engine) Sync(ctx context.Context, moduleID string, desired []Descriptor) (Report, error) {
	moduleID = strings.TrimSpace(moduleID)
	if moduleID == "" {
		return Report{}, fmt.Errorf("%w: module id required", shared.ErrValidation)
	}
	report := Report{ID: uuid.NewString(), Module: moduleID}

	err := e.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		stored, err := tx.PermissionsByModule(ctx, moduleID)
		if err != nil {
			return err
		}
		existing := make(map[string]permissions.Permission, len(stored))
		for _, p := range stored {
			existing[p.Name] = p
		}

		declared := make(map[string]struct{}, len(desired))
		for _, d := range desired {
			name := permissions.Normalize(d.Name)
			if name == "" {
				return fmt.Errorf("%w: descriptor name required", shared.ErrValidation)
			}
			if _, dup := declared[name]; dup {
				return fmt.Errorf("%w: duplicate descriptor %s", shared.ErrValidation, name)
			}
			declared[name] = struct{}{}

			next := descriptorToPermission(name, moduleID, d)
			if current, ok := existing[name]; ok {
				next.ID = current.ID
				next.IsCore = current.IsCore
				next.GroupID = current.GroupID
				if err := tx.UpdateByName(ctx, next); err != nil {
					return err
				}
				report.Updated = append(report.Updated, name)
				continue
			}
			if err := tx.Insert(ctx, next); err != nil {
				return err
			}
			report.New = append(report.New, name)
		}

		for name := range existing {
			if _, keep := declared[name]; keep {
				continue
			}
			if err := tx.ForceDeleteByName(ctx, name); err != nil {
				return err
			}
			report.Removed = append(report.Removed, name)
		}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	sort.Strings(report.New)
	sort.Strings(report.Updated)
	sort.Strings(report.Removed)

	if e.logger != nil {
		e.logger.Info("module permissions synced",
			slog.String("report", report.ID),
			slog.String("module", moduleID),
			slog.Int("new", len(report.New)),
			slog.Int("updated", len(report.Updated)),
			slog.Int("removed", len(report.Removed)))
	}
	if e.cache != nil {
		if err := e.cache.Bump(ctx); err != nil && e.logger != nil {
			e.logger.Warn("manifest cache bump", slog.Any("error", err))
		}
	}
	return report, nil
}

func descriptorToPermission(name, moduleID string, d Descriptor) permissions.Permission {
	guard := strings.TrimSpace(d.Guard)
	if guard == "" {
		guard = permissions.DefaultGuard
	}
	display := strings.TrimSpace(d.DisplayName)
	if display == "" {
		display = name
	}
	return permissions.Permission{
		Name:        name,
		DisplayName: display,
		Description: strings.TrimSpace(d.Description),
		Module:      moduleID,
		Guard:       guard,
		Order:       d.Order,
		Metadata:    d.Metadata,
	}
}
