package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
)

// Execute implements the go-flags Commander interface for ImportCommand.
func (c *ImportCommand) Execute(args []string) error {
	if c.In == "" {
		return fmt.Errorf("--in is required for import command")
	}
	return withLedger(c.globals, func(_ *config.Config, store *ledger.SQLiteStore, _ *sql.DB, _ string) error {
		return c.executeWithStore(context.Background(), store)
	})
}

// executeWithStore runs import against a provided store (used by tests).
func (c *ImportCommand) executeWithStore(ctx context.Context, store ledger.Store) error {
	var r io.Reader = os.Stdin
	if c.In != "-" {
		f, err := os.Open(c.In)
		if err != nil {
			return fmt.Errorf("open snapshot: %w", err)
		}
		defer f.Close()
		r = f
	}

	snap, err := ledger.ReadSnapshot(r)
	if err != nil {
		return err
	}

	n, err := ledger.Import(ctx, store, snap)
	if err != nil {
		return fmt.Errorf("imported %d entries before failing: %w", n, err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"entries": n,
			"days":    len(snap),
		})
	}
	fmt.Printf("Imported %d entries across %d days\n", n, len(snap))
	return nil
}
