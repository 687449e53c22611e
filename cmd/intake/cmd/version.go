package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCommand reports build metadata.
func newVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "intake %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
