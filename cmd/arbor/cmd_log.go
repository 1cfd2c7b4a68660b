package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/pkg/object"
)

func newLogCmd(g *globalOptions) *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log [revision]",
		Short: "Show first-parent commit history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}
			entries, err := r.Log(cmd.Context(), rev, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no commits yet")
				return nil
			}

			headHash, _ := r.ResolveRevision(cmd.Context(), "HEAD")
			branch, _ := r.CurrentBranch(cmd.Context())

			for _, e := range entries {
				decoration := buildDecoration(e.Hash, headHash, branch)
				if oneline {
					if decoration != "" {
						fmt.Fprintf(out, "%s %s %s\n", e.Hash.Short(), decoration, e.Subject())
					} else {
						fmt.Fprintf(out, "%s %s\n", e.Hash.Short(), e.Subject())
					}
					continue
				}
				if decoration != "" {
					fmt.Fprintf(out, "commit %s %s\n", e.Hash, decoration)
				} else {
					fmt.Fprintf(out, "commit %s\n", e.Hash)
				}
				if len(e.Commit.Parents) > 1 {
					fmt.Fprint(out, "Merge:")
					for _, p := range e.Commit.Parents {
						fmt.Fprintf(out, " %s", p.Short())
					}
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Author: %s\n", e.Commit.Author)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(e.Commit.Timestamp, 0).Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", e.Commit.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show")

	return cmd
}

// buildDecoration returns a string like "(HEAD -> main)" if the commit is
// the current HEAD, or "" otherwise.
func buildDecoration(commitHash, headHash object.Hash, branchName string) string {
	if commitHash != headHash {
		return ""
	}
	if branchName != "" {
		return "(HEAD -> " + branchName + ")"
	}
	return "(HEAD)"
}
