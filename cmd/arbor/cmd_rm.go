package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd(g *globalOptions) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove files from the index and the worktree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			paths, err := g.paths(r, args)
			if err != nil {
				return err
			}
			if err := r.Remove(cmd.Context(), paths, cached); err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "rm '%s'\n", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "only remove from the index")

	return cmd
}
