package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckoutCmd(g *globalOptions) *cobra.Command {
	var createBranch bool

	cmd := &cobra.Command{
		Use:   "checkout <branch|revision>",
		Short: "Switch branches or detach HEAD at a revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]

			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			if createBranch {
				if err := r.SwitchBranch(cmd.Context(), target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "switched to new branch '%s'\n", target)
				return nil
			}

			if err := r.Checkout(cmd.Context(), target); err != nil {
				return err
			}
			branch, err := r.CurrentBranch(cmd.Context())
			if err != nil {
				return err
			}
			if branch == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "HEAD is now detached at %s\n", target)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "switched to branch '%s'\n", branch)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&createBranch, "branch", "b", false, "create and switch to a new branch")

	return cmd
}
