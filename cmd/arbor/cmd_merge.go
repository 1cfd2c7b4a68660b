package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/pkg/repo"
)

func newMergeCmd(g *globalOptions) *cobra.Command {
	var abort bool
	var author string
	var noFF bool

	cmd := &cobra.Command{
		Use:   "merge <revision>",
		Short: "Merge a branch or revision into the current branch",
		Args: func(cmd *cobra.Command, args []string) error {
			if abort {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			out := cmd.OutOrStdout()

			if abort {
				if err := r.AbortMerge(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(out, "merge aborted")
				return nil
			}

			report, err := r.Merge(cmd.Context(), args[0], repo.MergeOptions{Author: author, NoFastForward: noFF})
			if err != nil {
				return err
			}
			printMergeReport(out, args[0], report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&abort, "abort", false, "abandon a conflicted merge and restore HEAD")
	cmd.Flags().BoolVar(&noFF, "no-ff", false, "create a merge commit even when a fast-forward is possible")
	cmd.Flags().StringVar(&author, "author", "", "override the merge commit author")

	return cmd
}

func printMergeReport(out io.Writer, rev string, report *repo.MergeReport) {
	switch {
	case report.UpToDate:
		fmt.Fprintln(out, "already up to date")
	case report.FastForward:
		fmt.Fprintf(out, "fast-forward %s..%s\n", report.Ours.Short(), report.Theirs.Short())
	case report.Forced:
		fmt.Fprintf(out, "merged %s as %s (no fast-forward)\n", rev, report.Commit.Short())
	case report.HasConflicts():
		for _, c := range report.Conflicts {
			fmt.Fprintf(out, "CONFLICT (%s): %s\n", c.Kind, c.Path)
		}
		fmt.Fprintf(out, "merge of %s stopped with %d conflict", rev, len(report.Conflicts))
		if len(report.Conflicts) != 1 {
			fmt.Fprint(out, "s")
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "fix conflicts, add the files and run arbor commit")
	default:
		fmt.Fprintf(out, "merged %s as %s\n", rev, report.Commit.Short())
	}
}
