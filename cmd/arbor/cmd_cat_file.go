package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/pkg/object"
)

func newCatFileCmd(g *globalOptions) *cobra.Command {
	var typeOnly bool

	cmd := &cobra.Command{
		Use:   "cat-file <object>",
		Short: "Print an object's type or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			typ, data, err := r.CatFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if typeOnly {
				fmt.Fprintln(out, typ)
				return nil
			}
			if typ == object.TypeTree {
				tr, err := object.UnmarshalTree(data)
				if err != nil {
					return err
				}
				for _, e := range tr.Entries {
					fmt.Fprintf(out, "%s %s %s\t%s\n", e.Mode, e.Type, e.Hash, e.Name)
				}
				return nil
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.Flags().BoolVarP(&typeOnly, "type", "t", false, "print only the object type")

	return cmd
}
