package main

import (
	"github.com/spf13/cobra"
)

func newAddCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Stage files for the next commit",
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
			return r.Add(cmd.Context(), paths)
		},
	}
}
