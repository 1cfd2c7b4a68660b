package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/arbor/pkg/diff"
	"github.com/odvcencio/arbor/pkg/repo"
)

func newDiffCmd(g *globalOptions) *cobra.Command {
	var nameStatus bool
	var staged bool
	var context int

	cmd := &cobra.Command{
		Use:   "diff [--staged] [from [to]] [--] [path...]",
		Short: "Show changes between the worktree, the index and commits",
		Long: `With no revisions, compares the index with the worktree.
With --staged, compares HEAD (or the one revision given) with the index.
With one revision, compares that revision with the index.
With two, compares the two revisions.

Paths after -- limit the output. Without --, arguments that are not
revisions but exist on disk are taken as paths.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := cmd.Context()

			revs, rawPaths := splitDiffArgs(cmd, r, g.dir, args)
			if len(revs) > 2 || (staged && len(revs) > 1) {
				return fmt.Errorf("diff: too many revisions: %v", revs)
			}
			paths, err := g.paths(r, rawPaths)
			if err != nil {
				return err
			}

			var changes []diff.Change
			worktreeSide := false
			switch {
			case staged && len(revs) == 1:
				changes, err = r.Diff(ctx, revs[0], "")
			case staged:
				changes, err = r.Diff(ctx, "HEAD", "")
			case len(revs) == 0:
				changes, err = r.DiffWorktree(ctx)
				worktreeSide = true
			case len(revs) == 1:
				changes, err = r.Diff(ctx, revs[0], "")
			default:
				changes, err = r.Diff(ctx, revs[0], revs[1])
			}
			if err != nil {
				return err
			}
			changes = diff.Filter(changes, paths)

			out := cmd.OutOrStdout()
			if nameStatus {
				fmt.Fprint(out, diff.FormatChanges(changes))
				return nil
			}
			var patch string
			if worktreeSide {
				patch, err = r.WorktreePatch(changes, context)
			} else {
				patch, err = r.Patch(changes, context)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(out, patch)
			return nil
		},
	}

	cmd.Flags().BoolVar(&nameStatus, "name-status", false, "list changed paths with a status letter")
	cmd.Flags().BoolVar(&staged, "staged", false, "compare the index with HEAD instead of the worktree")
	cmd.Flags().IntVarP(&context, "unified", "U", diff.DefaultContext, "lines of context around each change")

	return cmd
}

// splitDiffArgs separates revisions from paths. Everything after -- is a
// path; before it, an argument that does not resolve as a revision but
// exists on disk is a path too.
func splitDiffArgs(cmd *cobra.Command, r *repo.Repo, dir string, args []string) (revs, paths []string) {
	dash := cmd.ArgsLenAtDash()
	if dash >= 0 {
		return args[:dash], args[dash:]
	}
	for _, a := range args {
		if _, err := r.ResolveRevision(cmd.Context(), a); err != nil && onDisk(dir, a) {
			paths = append(paths, a)
			continue
		}
		revs = append(revs, a)
	}
	return revs, paths
}

func onDisk(dir, p string) bool {
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	_, err := os.Lstat(p)
	return !errors.Is(err, os.ErrNotExist)
}
