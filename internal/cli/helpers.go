package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/ledger"
)

// loadConfig loads the config named by --config, writing defaults on first use.
func loadConfig(globals *GlobalFlags) (*config.Config, string, error) {
	var flagPath string
	if globals != nil {
		flagPath = globals.Config
	}
	path, err := config.ResolvePath(flagPath)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.LoadOrCreateAt(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}

// openLedger opens the configured ledger database and returns a ready-to-use
// store, the underlying *sql.DB and the resolved database path.
func openLedger(cfg *config.Config) (*ledger.SQLiteStore, *sql.DB, string, error) {
	dbPath, err := cfg.Storage.DatabasePath()
	if err != nil {
		return nil, nil, "", fmt.Errorf("resolve db path: %w", err)
	}

	db, err := ledger.Open(dbPath, cfg.Storage.SQLiteJournalMode)
	if err != nil {
		return nil, nil, "", err
	}

	store, err := ledger.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, "", fmt.Errorf("create store: %w", err)
	}

	return store, db, dbPath, nil
}

// withLedger loads config, opens the ledger and runs fn against it.
func withLedger(globals *GlobalFlags, fn func(cfg *config.Config, store *ledger.SQLiteStore, db *sql.DB, dbPath string) error) error {
	cfg, _, err := loadConfig(globals)
	if err != nil {
		return err
	}
	store, db, dbPath, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()

	return fn(cfg, store, db, dbPath)
}

// newLogger builds the process logger from the logging section. The
// returned closer releases the log file, if any.
func newLogger(cfg config.LoggingConfig, verbose bool) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch {
	case verbose:
		level = slog.LevelDebug
	case cfg.Level != "":
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid logging.level %q: %w", cfg.Level, err)
		}
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		closer.Close()
		return nil, nil, fmt.Errorf("invalid logging.format %q (use text or json)", cfg.Format)
	}

	return slog.New(handler), closer, nil
}

func realClock(c clockwork.Clock) clockwork.Clock {
	if c == nil {
		return clockwork.NewRealClock()
	}
	return c
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
		result.WriteString(",")
	}
	for i := remainder; i < len(s); i += 3 {
		if i > remainder {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}
