package cli

import (
	"io"

	"github.com/jonboulle/clockwork"

	"github.com/runnerr0/dwell/internal/ledger"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file (default ~/.config/dwell/config.yaml)" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// RunCommand starts the tracking daemon.
type RunCommand struct {
	Host     string `long:"host" description:"Override daemon listen host"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level (debug, info, warn, error)"`

	globals *GlobalFlags
	version string
}

// TodayCommand prints the quick summary of a day.
type TodayCommand struct {
	Day string `long:"day" description:"Day to summarize as YYYY-MM-DD (default today)"`

	globals *GlobalFlags
	version string
	clock   clockwork.Clock // nil means the real clock
}

// DashboardCommand prints the detailed summary and daily chart.
type DashboardCommand struct {
	Days    int    `long:"days" description:"Number of days in the daily chart" default:"7"`
	Watch   bool   `long:"watch" description:"Keep the dashboard open and refresh it"`
	Refresh string `long:"refresh" description:"Refresh period for --watch (e.g. 30s, 2m)" default:"30s"`

	globals *GlobalFlags
	version string
	clock   clockwork.Clock
}

// StatusCommand shows ledger statistics and daemon reachability.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// ExportCommand writes the ledger as a JSON snapshot.
type ExportCommand struct {
	Out string `long:"out" short:"o" description:"Write to file instead of stdout"`

	globals *GlobalFlags
	version string
}

// ImportCommand merges a JSON snapshot into the ledger.
type ImportCommand struct {
	In string `long:"in" short:"i" description:"Snapshot file to import (required, - for stdin)"`

	globals *GlobalFlags
	version string
}

// PurgeCommand deletes all ledger data with a safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   ledger.Store // injectable for testing; nil means open the configured ledger
	stdin   io.Reader    // nil means os.Stdin
}
