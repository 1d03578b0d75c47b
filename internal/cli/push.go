package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/runtime"
)

// newPushCmd creates the push command.
func newPushCmd() *cobra.Command {
	var opts actions.PushOptions

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Publish the stack as chained pull requests",
		Long: `Publish every described change between the trunk and the given revision
(default: the working copy) as a chain of pull requests, one per change.
Existing pull requests are brought up to date; new changes get a branch,
a pull request targeting the change below, and association trailers in
their description.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := runtime.Load(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := actions.PushAction(cmd.Context(), rt, opts)
			if err != nil {
				return err
			}
			if report.Failed() {
				return fmt.Errorf("some changes were not pushed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Head, "revision", "r", "", "Push the stack of this revision (default: the working copy)")
	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "Push the stacks of all mutable heads")
	cmd.Flags().StringVarP(&opts.Message, "message", "m", "", "Commit message for updates to already published pull requests")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Overwrite head branches that moved since the last push")
	cmd.Flags().StringSliceVar(&opts.Reviewers, "reviewer", nil, "Request a review from these GitHub logins")
	cmd.Flags().StringSliceVar(&opts.Assignees, "assignee", nil, "Assign these GitHub logins to the pull requests")

	return cmd
}
