package cli

import (
	"github.com/spf13/cobra"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/runtime"
	"revstack.dev/revstack/internal/tui"
)

// newListCmd creates the list command.
func newListCmd() *cobra.Command {
	var opts actions.ListOptions
	var interactive bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the open pull requests behind your stacks",
		Long: `List the open pull requests this repository's stacks consist of, with
their position in each chain and the local change backing them. Pull
requests from other tools are hidden unless --all is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := runtime.Load(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := actions.ListAction(cmd.Context(), rt, opts)
			if err != nil {
				return err
			}
			if interactive {
				return tui.BrowseList(entries)
			}
			actions.RenderList(rt.Splog, entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "Include pull requests revstack does not manage")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Browse the pull requests in an interactive table")

	return cmd
}
