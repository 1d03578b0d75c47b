// Package cli defines the revstack command tree. Commands stay thin:
// they parse flags, assemble the runtime, and delegate to the actions
// package.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "revstack",
		Short: "Revstack bridges jj changes and stacked GitHub pull requests",
		Long: `Revstack publishes stacks of jj changes as chains of GitHub pull
requests, one pull request per change, and keeps the two sides in step as
reviews progress.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newAdoptCmd())
	rootCmd.AddCommand(newListCmd())

	return rootCmd
}
