package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/pkg/repo"
)

func newStatusCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List paths that differ between HEAD, the index and the worktree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			branch, err := r.CurrentBranch(cmd.Context())
			if err != nil {
				return err
			}
			if branch == "" {
				fmt.Fprintln(out, "HEAD detached")
			} else {
				fmt.Fprintf(out, "on branch %s\n", branch)
			}
			if merging, err := r.MergeInProgress(); err != nil {
				return err
			} else if merging {
				fmt.Fprintln(out, "merge in progress; commit to conclude or run merge --abort")
			}

			entries, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%c%c %s\n", statusCode(e.IndexStatus), statusCode(e.WorkStatus), e.Path)
			}
			return nil
		},
	}
}

func statusCode(s repo.FileStatus) byte {
	switch s {
	case repo.StatusAdded:
		return 'A'
	case repo.StatusModified:
		return 'M'
	case repo.StatusDeleted:
		return 'D'
	case repo.StatusUntracked:
		return '?'
	default:
		return ' '
	}
}
