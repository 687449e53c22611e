// Package cmd wires the intake CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agencykit/intake/internal/config"
	"github.com/agencykit/intake/pkg/logging"
)

var verbose bool

// newRootCommand assembles the command tree.
func newRootCommand(version, commit, date string) *cobra.Command {
	root := &cobra.Command{
		Use:   "intake",
		Short: "Reconcile bulk lead and renewal uploads against a record store",
		Long: `Intake ingests spreadsheet rows (leads and policy renewals), matches each
row to an existing record by its natural business key, merges new
information without overwriting what is already known, and flags records
that two different sources claim as their own.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Missing .env is fine; environment variables still apply.
			_ = godotenv.Load()
			config.Init()
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCommand(),
		newVersionCommand(version, commit, date),
	)

	return root
}

// Execute runs the CLI with the given context and build metadata.
func Execute(ctx context.Context, version, commit, date string) error {
	root := newRootCommand(version, commit, date)
	if err := root.ExecuteContext(ctx); err != nil {
		logging.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
