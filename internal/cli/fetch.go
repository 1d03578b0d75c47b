package cli

import (
	"github.com/spf13/cobra"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/runtime"
)

// newFetchCmd creates the fetch command.
func newFetchCmd() *cobra.Command {
	var opts actions.FetchOptions

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Pull remote pull request edits back into the stack",
		Long: `Pull remote edits into the local stack: pull request titles and bodies
replace the local descriptions (reviewer lists and association trailers
are kept), and with --pull-code, commits others pushed to the head
branches are folded into the changes. Overlapping edits surface as jj
conflicts to resolve locally.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtime.Load(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			_, err = actions.FetchAction(cmd.Context(), rt, opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.Head, "revision", "r", "", "Refresh the stack of this revision (default: the working copy)")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Refresh the stacks of all mutable heads")
	cmd.Flags().BoolVar(&opts.PullCode, "pull-code", false, "Fold remote commits on the head branches into the local changes")

	return cmd
}
