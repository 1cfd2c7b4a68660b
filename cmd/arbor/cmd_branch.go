package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBranchCmd(g *globalOptions) *cobra.Command {
	var deleteBranch string

	cmd := &cobra.Command{
		Use:   "branch [name [start]]",
		Short: "List, create, or delete branches",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if deleteBranch != "" {
				if err := r.DeleteBranch(ctx, deleteBranch); err != nil {
					return err
				}
				fmt.Fprintf(out, "deleted branch '%s'\n", deleteBranch)
				return nil
			}

			if len(args) > 0 {
				start := "HEAD"
				if len(args) == 2 {
					start = args[1]
				}
				target, err := r.ResolveRevision(ctx, start)
				if err != nil {
					return err
				}
				return r.CreateBranch(ctx, args[0], target)
			}

			branches, err := r.ListBranches(ctx)
			if err != nil {
				return err
			}
			for _, b := range branches {
				if b.Current {
					fmt.Fprintf(out, "* %s %s\n", b.Name, b.Commit.Short())
				} else {
					fmt.Fprintf(out, "  %s %s\n", b.Name, b.Commit.Short())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deleteBranch, "delete", "d", "", "delete the named branch")

	return cmd
}
