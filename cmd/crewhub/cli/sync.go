package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/crewhub/crewhub/internal/manifest"
	"github.com/crewhub/crewhub/jobs"
)

// SyncCLI drives manifest reconciliation from the command line.
type SyncCLI struct {
	Engine *manifest.Engine
	Jobs   *jobs.Client
	Logger *slog.Logger
	Out    io.Writer
}

// Run reconciles the manifest at path against the database and reports the
// outcome. When a jobs client is configured it also schedules a cache
// warmup so staff sessions pick up the new catalog quickly.
func (c *SyncCLI) Run(ctx context.Context, path string) error {
	if c == nil || c.Engine == nil {
		return errors.New("sync cli: engine not configured")
	}
	m, err := manifest.Load(path)
	if err != nil {
		return fmt.Errorf("sync cli: load manifest: %w", err)
	}

	report, err := c.Engine.Sync(ctx, m.Module, m.Permissions)
	if err != nil {
		return fmt.Errorf("sync cli: sync %s: %w", m.Module, err)
	}

	if c.Out != nil {
		fmt.Fprintf(c.Out, "module %s synced (report %s)\n", report.Module, report.ID)
		printSection(c.Out, "new", report.New)
		printSection(c.Out, "updated", report.Updated)
		printSection(c.Out, "removed", report.Removed)
	}

	if c.Jobs != nil {
		_, err := c.Jobs.EnqueueAuthzWarmup(ctx, jobs.AuthzWarmupPayload{Reason: "manifest sync " + report.Module})
		if err != nil && c.Logger != nil {
			c.Logger.Warn("enqueue warmup after sync", slog.Any("error", err))
		}
	}
	return nil
}

func printSection(out io.Writer, label string, names []string) {
	fmt.Fprintf(out, "  %s: %d\n", label, len(names))
	for _, name := range names {
		fmt.Fprintf(out, "    - %s\n", name)
	}
}
