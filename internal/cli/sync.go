package cli

import (
	"github.com/spf13/cobra"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/runtime"
)

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	var opts actions.SyncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile local stacks with merged and closed pull requests",
		Long: `Fetch from the remote, abandon local changes whose pull requests have
merged or been closed, and rebase the surviving changes onto the fresh
trunk tip. Sync never writes to the remote.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtime.Load(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			_, err = actions.SyncAction(cmd.Context(), rt, opts)
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.DryRun, "dry-run", "n", false, "Report what would happen without changing anything")

	return cmd
}
