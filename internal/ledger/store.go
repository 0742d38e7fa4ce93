package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store defines the ledger operations: durable day -> domain -> seconds totals.
type Store interface {
	Get(ctx context.Context, dayKeys []string) (Snapshot, error)
	All(ctx context.Context) (Snapshot, error)
	Merge(ctx context.Context, dayKey, domain string, delta float64) error
	Clear(ctx context.Context) error
	Days(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

var journalModes = map[string]bool{
	"delete": true, "truncate": true, "persist": true,
	"memory": true, "wal": true, "off": true,
}

// Open opens (creating if needed) the SQLite ledger at path, applies the
// journal mode and runs migrations. Use ":memory:" for a throwaway ledger.
//
// The pool is limited to one connection: SQLite serializes writers anyway,
// and an in-memory database exists only on the connection that created it.
func Open(path, journalMode string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if mode := strings.ToLower(journalMode); mode != "" {
		if !journalModes[mode] {
			db.Close()
			return nil, fmt.Errorf("unsupported journal mode %q", journalMode)
		}
		if _, err := db.Exec("PRAGMA journal_mode = " + mode); err != nil {
			db.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex

	merge *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	var err error
	s.merge, err = db.Prepare(`
		INSERT INTO ledger (day, domain, seconds) VALUES (?, ?, ?)
		ON CONFLICT (day, domain) DO UPDATE SET
			seconds    = seconds + excluded.seconds,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare merge: %w", err)
	}

	return s, nil
}

// Merge adds delta seconds to (dayKey, domain). The increment happens in a
// single UPSERT statement, so concurrent merges on the same key never lose
// updates. A zero delta is validated but writes nothing.
func (s *SQLiteStore) Merge(ctx context.Context, dayKey, domain string, delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta < 0 {
		return fmt.Errorf("%w: %v seconds for %s on %s", ErrInvalidDelta, delta, domain, dayKey)
	}
	if domain == "" {
		return fmt.Errorf("%w: empty domain", ErrInvalidKey)
	}
	if _, err := time.Parse(DayLayout, dayKey); err != nil {
		return fmt.Errorf("%w: day %q", ErrInvalidKey, dayKey)
	}
	if delta == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.merge.ExecContext(ctx, dayKey, domain, delta); err != nil {
		return fmt.Errorf("merge %s/%s: %w", dayKey, domain, err)
	}
	return nil
}

// Get returns the stored totals for each requested day. Days with no data are
// omitted from the result.
func (s *SQLiteStore) Get(ctx context.Context, dayKeys []string) (Snapshot, error) {
	out := Snapshot{}
	if len(dayKeys) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(dayKeys))
	args := make([]interface{}, len(dayKeys))
	for i, k := range dayKeys {
		placeholders[i] = "?"
		args[i] = k
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT day, domain, seconds FROM ledger WHERE day IN (" + strings.Join(placeholders, ", ") + ")"
	return s.scanSnapshot(ctx, query, args...)
}

// All returns every recorded day.
func (s *SQLiteStore) All(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanSnapshot(ctx, "SELECT day, domain, seconds FROM ledger")
}

func (s *SQLiteStore) scanSnapshot(ctx context.Context, query string, args ...interface{}) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	out := Snapshot{}
	for rows.Next() {
		var day, domain string
		var seconds float64
		if err := rows.Scan(&day, &domain, &seconds); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if out[day] == nil {
			out[day] = map[string]float64{}
		}
		out[day][domain] = seconds
	}

	return out, rows.Err()
}

// Clear irreversibly deletes all ledger data.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM ledger"); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// Days returns all day keys with recorded time, oldest first.
func (s *SQLiteStore) Days(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT day FROM ledger ORDER BY day")
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	days := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// Stats returns aggregate statistics about the ledger.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	var first, last sql.NullString
	var total sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT day), COUNT(DISTINCT domain), SUM(seconds), MIN(day), MAX(day)
		FROM ledger
	`).Scan(&stats.Days, &stats.Domains, &total, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("ledger totals: %w", err)
	}
	stats.TotalSeconds = total.Float64
	stats.FirstDay = first.String
	stats.LastDay = last.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, SUM(seconds) AS total FROM ledger
		GROUP BY domain ORDER BY total DESC, domain ASC LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dt DomainTotal
		if err := rows.Scan(&dt.Domain, &dt.Seconds); err != nil {
			return nil, err
		}
		stats.TopDomains = append(stats.TopDomains, dt)
	}

	return stats, rows.Err()
}

// Close releases the prepared statement. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	if s.merge != nil {
		return s.merge.Close()
	}
	return nil
}
