package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	return withLedger(c.globals, func(_ *config.Config, store *ledger.SQLiteStore, _ *sql.DB, _ string) error {
		return c.executeWithStore(context.Background(), store)
	})
}

// executeWithStore runs export against a provided store (used by tests).
func (c *ExportCommand) executeWithStore(ctx context.Context, store ledger.Store) error {
	snap, err := ledger.Export(ctx, store)
	if err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}

	if c.Out == "" || c.Out == "-" {
		return ledger.WriteSnapshot(os.Stdout, snap)
	}

	if err := writeFileAtomic(c.Out, func(w io.Writer) error {
		return ledger.WriteSnapshot(w, snap)
	}); err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"path": c.Out,
			"days": len(snap),
		})
	}
	fmt.Printf("Exported %d days to %s\n", len(snap), c.Out)
	return nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place, so a failed export never truncates an old one.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dwell-export-*")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move export into place: %w", err)
	}
	return nil
}
