package cli

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
	"github.com/runnerr0/dwell/internal/report"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	Days              int64             `json:"days"`
	Domains           int64             `json:"domains"`
	TotalSeconds      float64           `json:"total_seconds"`
	FirstDay          string            `json:"first_day,omitempty"`
	LastDay           string            `json:"last_day,omitempty"`
	TopDomains        []domainTotalJSON `json:"top_domains"`
	DaemonAddress     string            `json:"daemon_address"`
	DaemonRunning     bool              `json:"daemon_running"`
}

type domainTotalJSON struct {
	Domain  string  `json:"domain"`
	Seconds float64 `json:"seconds"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	return withLedger(c.globals, func(cfg *config.Config, store *ledger.SQLiteStore, db *sql.DB, dbPath string) error {
		return c.executeWithStore(store, db, dbPath, "http://"+cfg.Daemon.Address())
	})
}

// executeWithStore runs status against a provided store and db (for testing).
func (c *StatusCommand) executeWithStore(store ledger.Store, db *sql.DB, dbPath, daemonURL string) error {
	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := getDatabaseSize(db, dbPath)
	daemonRunning := checkDaemon(daemonURL)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, dbPath, dbSize, daemonURL, daemonRunning)
	}
	return c.printStatusHuman(stats, dbPath, dbSize, daemonURL, daemonRunning)
}

func (c *StatusCommand) printStatusHuman(stats *ledger.Stats, dbPath string, dbSize int64, daemonURL string, daemonRunning bool) error {
	fmt.Println("dwell Status")
	fmt.Println("============")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", dbPath, formatBytes(dbSize))
	fmt.Printf("Days:          %s\n", formatNumber(stats.Days))
	fmt.Printf("Domains:       %s\n", formatNumber(stats.Domains))
	fmt.Printf("Total:         %s\n", report.FormatDuration(stats.TotalSeconds))

	if stats.Days > 0 {
		fmt.Printf("First day:     %s\n", stats.FirstDay)
		fmt.Printf("Last day:      %s\n", stats.LastDay)
	}

	if len(stats.TopDomains) > 0 {
		fmt.Println()
		fmt.Println("Top Domains:")
		for _, d := range stats.TopDomains {
			fmt.Printf("  %-24s %s\n", d.Domain, report.FormatDuration(d.Seconds))
		}
	}

	fmt.Println()
	if daemonRunning {
		fmt.Printf("Daemon:        running (%s)\n", daemonURL)
	} else {
		fmt.Println("Daemon:        not running")
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *ledger.Stats, dbPath string, dbSize int64, daemonURL string, daemonRunning bool) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      dbPath,
		DatabaseSizeBytes: dbSize,
		Days:              stats.Days,
		Domains:           stats.Domains,
		TotalSeconds:      stats.TotalSeconds,
		FirstDay:          stats.FirstDay,
		LastDay:           stats.LastDay,
		TopDomains:        make([]domainTotalJSON, len(stats.TopDomains)),
		DaemonAddress:     daemonURL,
		DaemonRunning:     daemonRunning,
	}

	for i, d := range stats.TopDomains {
		out.TopDomains[i] = domainTotalJSON{Domain: d.Domain, Seconds: d.Seconds}
	}

	return printJSON(out)
}

// getDatabaseSize returns the database file size in bytes.
// For on-disk databases, it uses os.Stat. For in-memory databases,
// it queries page_count * page_size.
func getDatabaseSize(db *sql.DB, dbPath string) int64 {
	if info, err := os.Stat(dbPath); err == nil {
		return info.Size()
	}

	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// checkDaemon attempts an HTTP GET to the daemon's status endpoint.
// Returns true if the daemon responds within 1 second.
func checkDaemon(baseURL string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(baseURL + "/status")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
