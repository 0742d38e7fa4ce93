package cli

import (
	"bytes"
	"database/sql"
	"io"
	"os"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/dwell/internal/ledger"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	defer func() { os.Stdout = old }()
	fn()

	w.Close()
	return <-done
}

// openTestStore creates a migrated in-memory ledger for testing.
func openTestStore(t *testing.T) (*ledger.SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := ledger.Open(":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := ledger.NewSQLiteStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, db
}

// parseOnly parses args without running the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(_ goflags.Commander, _ []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}

func bytesReader(s string) io.Reader {
	return bytes.NewReader([]byte(s))
}
