package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
	"github.com/runnerr0/dwell/internal/report"
)

// Execute implements the go-flags Commander interface for DashboardCommand.
func (c *DashboardCommand) Execute(args []string) error {
	if err := c.validate(); err != nil {
		return err
	}
	return withLedger(c.globals, func(_ *config.Config, store *ledger.SQLiteStore, _ *sql.DB, _ string) error {
		ctx := context.Background()
		if c.Watch {
			return c.watch(ctx, store)
		}
		return c.executeWithStore(ctx, store)
	})
}

func (c *DashboardCommand) validate() error {
	if c.Days <= 0 {
		return fmt.Errorf("--days must be > 0, got %d", c.Days)
	}
	if c.Watch && c.globals != nil && c.globals.JSON {
		return fmt.Errorf("--watch cannot be combined with --json")
	}
	if _, err := time.ParseDuration(c.Refresh); err != nil {
		return fmt.Errorf("--refresh: %w", err)
	}
	return nil
}

// load reads the days shown by the dashboard, ending today.
func (c *DashboardCommand) load(ctx context.Context, store ledger.Store) (report.Dashboard, error) {
	days := ledger.LastNDays(realClock(c.clock).Now(), c.Days)
	snap, err := store.Get(ctx, days)
	if err != nil {
		return report.Dashboard{}, fmt.Errorf("read ledger: %w", err)
	}
	return report.BuildDashboard(snap, days), nil
}

// executeWithStore prints the dashboard once (used by tests).
func (c *DashboardCommand) executeWithStore(ctx context.Context, store ledger.Store) error {
	d, err := c.load(ctx, store)
	if err != nil {
		return err
	}
	if c.globals != nil && c.globals.JSON {
		return printJSON(d)
	}
	fmt.Println(report.RenderDashboard(d))
	return nil
}

func (c *DashboardCommand) watch(ctx context.Context, store ledger.Store) error {
	refresh, _ := time.ParseDuration(c.Refresh)
	model := report.NewWatchModel(func() (report.Dashboard, error) {
		return c.load(ctx, store)
	}, refresh)

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
