package cli

import (
	"github.com/spf13/cobra"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/runtime"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	var opts actions.InitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Configure this repository for revstack",
		Long: `Configure this repository: the GitHub repository pull requests go to,
the git remote, the trunk branch, and the prefix for generated head
branches. Detected defaults can be overridden interactively or with
flags.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtime.LoadBare(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			return actions.InitAction(cmd.Context(), rt, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "GitHub repository owner")
	cmd.Flags().StringVar(&opts.Repo, "repo", "", "GitHub repository name")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "Git remote to push through (default origin)")
	cmd.Flags().StringVar(&opts.Trunk, "trunk", "", "Trunk branch stacks base on (detected from the remote)")
	cmd.Flags().StringVar(&opts.BranchPrefix, "branch-prefix", "", "Prefix for generated head branch names")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Accept all detected defaults without prompting")

	return cmd
}
