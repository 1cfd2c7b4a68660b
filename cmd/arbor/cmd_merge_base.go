package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMergeBaseCmd(g *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "merge-base <a> <b>",
		Short: "Print the best common ancestor of two revisions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			bases, err := r.MergeBases(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if len(bases) == 0 {
				return fmt.Errorf("no common ancestor of %s and %s", args[0], args[1])
			}
			if !all {
				bases = bases[:1]
			}
			for _, h := range bases {
				fmt.Fprintln(cmd.OutOrStdout(), h)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "print every best common ancestor")

	return cmd
}
