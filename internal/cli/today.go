package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
	"github.com/runnerr0/dwell/internal/report"
)

// Execute implements the go-flags Commander interface for TodayCommand.
func (c *TodayCommand) Execute(args []string) error {
	return withLedger(c.globals, func(_ *config.Config, store *ledger.SQLiteStore, _ *sql.DB, _ string) error {
		return c.executeWithStore(context.Background(), store)
	})
}

// executeWithStore runs today against a provided store (used by tests).
func (c *TodayCommand) executeWithStore(ctx context.Context, store ledger.Store) error {
	now := realClock(c.clock).Now()
	day := c.Day
	if day == "" {
		day = ledger.DayKey(now)
	} else if _, err := ledger.ParseDayKey(day, now.Location()); err != nil {
		return fmt.Errorf("--day: %w", err)
	}

	snap, err := store.Get(ctx, []string{day})
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	summary := report.BuildToday(snap, day)
	if c.globals != nil && c.globals.JSON {
		return printJSON(summary)
	}
	fmt.Print(report.RenderToday(summary))
	return nil
}
