// =============================================================================
// Order History Export - Version Command
// =============================================================================
//
// This file defines the 'version' command. Besides the release number it
// reports the commit the binary was built from and what this build can read
// and where it can keep its state.
//
// COMMAND USAGE:
//   orderexport version [--short]
//
// OUTPUT:
//   Order History Export
//   Version:    0.3.0
//   Commit:     4f2a9c1 (modified)
//   Build Date: 2024-01-01T09:30:00Z
//   Go Version: go1.22.0
//   Layouts:    table, grid
//   Backends:   memory, file, redis
//
// Commit and Build Date come from the VCS stamp the go tool embeds when
// building inside a checkout. Release builds may pin them with
//   -ldflags "-X .../cmd.Commit=<sha> -X .../cmd.BuildDate=<rfc3339>"
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/locator"
)

// =============================================================================
// VERSION INFORMATION
// =============================================================================

// Version is the application version.
var Version = "0.3.0"

// Commit and BuildDate are empty unless set with ldflags, in which case they
// win over the embedded VCS stamp.
var (
	Commit    = ""
	BuildDate = ""
)

var versionShort bool

// buildInfo resolves the commit and build date for this binary.
func buildInfo() (commit, date string) {
	commit, date = Commit, BuildDate

	modified := false
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if date == "" {
					date = s.Value
				}
			case "vcs.modified":
				modified = s.Value == "true"
			}
		}
	}

	if commit == "" {
		commit = "unknown"
	} else if len(commit) > 7 {
		commit = commit[:7]
	}
	if modified && Commit == "" {
		commit += " (modified)"
	}
	if date == "" {
		date = "unknown"
	}
	return commit, date
}

// =============================================================================
// VERSION COMMAND DEFINITION
// =============================================================================

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long: `Display the application version, the commit and date it was built from,
the Go runtime, and the invoice layouts and store backends this build supports.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, Version)
			return
		}

		commit, date := buildInfo()
		layouts := []string{locator.VariantTable.String(), locator.VariantGrid.String()}
		backends := []string{config.BackendMemory, config.BackendFile, config.BackendRedis}

		fmt.Fprintln(out, "Order History Export")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Commit:     %s\n", commit)
		fmt.Fprintf(out, "Build Date: %s\n", date)
		fmt.Fprintf(out, "Go Version: %s\n", runtime.Version())
		fmt.Fprintf(out, "Layouts:    %s\n", strings.Join(layouts, ", "))
		fmt.Fprintf(out, "Backends:   %s\n", strings.Join(backends, ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}
