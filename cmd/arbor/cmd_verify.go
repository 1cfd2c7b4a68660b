package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check object integrity and reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			summary, err := r.Verify(cmd.Context())
			if err != nil {
				if summary != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "checked %d object(s): %d corrupt, %d missing\n",
						summary.Objects, summary.Corrupt, summary.Missing)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "ok: verified %d object(s), %d reachable\n", summary.Objects, summary.Reachable)
			return nil
		},
	}
}
