package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"revstack.dev/revstack/internal/actions"
	"revstack.dev/revstack/internal/github"
	"revstack.dev/revstack/internal/runtime"
)

// newAdoptCmd creates the adopt command.
func newAdoptCmd() *cobra.Command {
	var opts actions.AdoptOptions

	cmd := &cobra.Command{
		Use:   "adopt <number-or-url>",
		Short: "Materialize a pull request chain as local changes",
		Long: `Materialize a pull request, and every pull request it transitively
bases on, as local changes with association trailers, so a stack started
on another machine can be continued here.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				if _, _, n, urlErr := github.ParsePullRequestURL(args[0]); urlErr == nil {
					number = n
				} else {
					return err
				}
			}
			opts.Number = number

			rt, err := runtime.Load(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			_, err = actions.AdoptAction(cmd.Context(), rt, opts)
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.NoCheckout, "no-checkout", false, "Leave the working copy where it is")

	return cmd
}
