package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/dwell/internal/ledger"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	if !c.Force {
		if err := c.confirm(); err != nil {
			return err
		}
	}

	store := c.store
	if store == nil {
		cfg, _, err := loadConfig(c.globals)
		if err != nil {
			return err
		}
		sqlStore, db, _, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		defer sqlStore.Close()
		store = sqlStore
	}

	return c.purge(context.Background(), store)
}

func (c *PurgeCommand) confirm() error {
	fmt.Println("⚠ WARNING: This will permanently delete ALL recorded time.")
	fmt.Println("  - Every day in the ledger")
	fmt.Println("  - Every domain total")
	fmt.Println()
	fmt.Println("This action cannot be undone.")
	fmt.Println()
	fmt.Print(`Type "PURGE" to confirm: `)

	in := c.stdin
	if in == nil {
		in = os.Stdin
	}
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "PURGE" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

func (c *PurgeCommand) purge(ctx context.Context, store ledger.Store) error {
	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. The ledger is empty.")
	return nil
}
