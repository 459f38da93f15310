// Package main provides the CLI for the Pellucid schema migration engine.
// Pellucid manages graph-relational schema evolution declaratively: schema
// documents describe the desired state, and the engine plans the ordered
// command tree that takes the last applied snapshot there.
//
// Usage:
//
//	pellucid init                # Create schema/ dir and pellucid.yaml
//	pellucid check               # Compile schema documents and report problems
//	pellucid plan                # Show the migration plan without applying it
//	pellucid apply               # Plan and apply, storing the new snapshot
//	pellucid drift               # Compare documents against the snapshot
//	pellucid snapshot            # Export or import the head snapshot
//	pellucid cache               # Inspect or clear the snapshot cache
//	pellucid watch               # Re-plan on every schema document change
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pellucidb/pellucid/internal/cli"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var (
	configFile string
	schemaDir  string
	noColor    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pellucid",
		Short:   "Declarative schema migration engine",
		Long:    `Pellucid is a declarative schema migration engine. Schema documents describe the desired state; pellucid diffs them against the last applied snapshot and produces an ordered migration plan.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				cli.SetDefault(cli.NewConfigWithMode(cli.ModePlain))
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "pellucid.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&schemaDir, "schema-dir", "s", "", "Path to schema documents directory")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		initCmd(),
		checkCmd(),
		planCmd(),
		applyCmd(),
		driftCmd(),
		snapshotCmd(),
		cacheCmd(),
		watchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, cli.FormatError(err))
		os.Exit(1)
	}
}
