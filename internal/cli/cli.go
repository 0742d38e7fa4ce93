package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Run       *RunCommand
	Today     *TodayCommand
	Dashboard *DashboardCommand
	Status    *StatusCommand
	Export    *ExportCommand
	Import    *ImportCommand
	Purge     *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "dwell"
	parser.LongDescription = "Local per-domain active browsing time tracker."

	cmds := &commands{
		Run:       &RunCommand{globals: &globals, version: version},
		Today:     &TodayCommand{globals: &globals, version: version},
		Dashboard: &DashboardCommand{globals: &globals, version: version},
		Status:    &StatusCommand{globals: &globals, version: version},
		Export:    &ExportCommand{globals: &globals, version: version},
		Import:    &ImportCommand{globals: &globals, version: version},
		Purge:     &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("run", "Start the dwell daemon", "Start the dwell daemon: track active time from browser events and serve the local HTTP API.", cmds.Run)
	parser.AddCommand("today", "Show today's time per site", "Show today's total and top sites.", cmds.Today)
	parser.AddCommand("dashboard", "Show the detailed dashboard", "Show today's totals, the top sites table and daily usage for the last days.", cmds.Dashboard)
	parser.AddCommand("status", "Show ledger statistics", "Show database statistics and whether the daemon is running.", cmds.Status)
	parser.AddCommand("export", "Export the ledger as JSON", "Export every recorded day as a JSON snapshot (day -> domain -> seconds).", cmds.Export)
	parser.AddCommand("import", "Merge a JSON snapshot", "Merge a JSON snapshot into the ledger. Existing totals are added to.", cmds.Import)
	parser.AddCommand("purge", "Delete ALL recorded time", "Delete ALL recorded time. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the dwell CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("dwell %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
