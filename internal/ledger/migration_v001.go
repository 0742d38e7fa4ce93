package ledger

import "database/sql"

// migrateV001 creates the ledger table: one row per (day, domain) holding
// the accumulated seconds. Every statement uses IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ledger (
			day        TEXT NOT NULL,
			domain     TEXT NOT NULL,
			seconds    REAL NOT NULL DEFAULT 0 CHECK (seconds >= 0),
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (day, domain)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_ledger_domain ON ledger(domain)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
