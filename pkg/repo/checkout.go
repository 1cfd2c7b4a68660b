package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/refs"
	"github.com/odvcencio/arbor/pkg/tree"
	"github.com/odvcencio/arbor/pkg/worktree"
)

// Checkout switches the worktree, index and HEAD to target. A branch name
// attaches HEAD to that branch; any other revision detaches it.
//
//  1. Refuse if tracked files have uncommitted changes.
//  2. Resolve target, preferring a branch of that name.
//  3. Replace the tracked files with the target tree and rewrite the index
//     from it, so afterwards the index equals the target tree.
//  4. Move HEAD with a compare-and-swap against the value read in step 1.
//     If the swap loses, the files and index go back to the old tree.
func (r *Repo) Checkout(ctx context.Context, target string) error {
	if err := r.ensureNoMerge(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.ensureClean(ctx); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	st, err := r.readHead(ctx)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	var next refs.Head
	branchRef := refs.Qualify(target)
	commit, isBranch, err := r.Refs.Read(ctx, branchRef)
	if err != nil && refs.ValidateName(branchRef) == nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if isBranch {
		next = refs.SymbolicHead(branchRef)
	} else {
		commit, err = r.ResolveRevision(ctx, target)
		if err != nil {
			return fmt.Errorf("checkout: %w", err)
		}
		next = refs.DetachedHead(commit)
	}

	fromTree, err := r.commitTree(st.commit)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	toTree, err := r.commitTree(commit)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := r.switchTree(fromTree, toTree); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	ok, err := r.Refs.UpdateHead(ctx, st.head, next)
	if err == nil && !ok {
		err = refs.ErrRefUpdateConflict
	}
	if err != nil {
		return fmt.Errorf("checkout: update HEAD: %w", r.restoreTree(toTree, fromTree, err))
	}
	r.appendReflog("HEAD", st.commit, commit, "checkout: moving to "+target)
	r.Logger.Debug("checked out",
		zap.String("target", target),
		zap.String("commit", commit.Short()),
		zap.Bool("detached", next.IsDetached()))
	return nil
}

// SwitchBranch creates branch name at HEAD and checks it out.
func (r *Repo) SwitchBranch(ctx context.Context, name string) error {
	if err := r.CreateBranch(ctx, name, ""); err != nil {
		return err
	}
	return r.Checkout(ctx, name)
}

// switchTree replaces the tracked files of fromTree (and anything staged)
// with the files of toTree, then rewrites the index to match toTree. Either
// tree id may be empty.
func (r *Repo) switchTree(fromTree, toTree object.Hash) error {
	var target []index.Entry
	if toTree != "" {
		files, err := tree.Flatten(r.Store, toTree)
		if err != nil {
			return err
		}
		target = files
	}
	keep := make(map[string]bool, len(target))
	for _, f := range target {
		keep[f.Path] = true
	}

	tracked := make(map[string]bool)
	if fromTree != "" {
		files, err := tree.Flatten(r.Store, fromTree)
		if err != nil {
			return err
		}
		for _, f := range files {
			tracked[f.Path] = true
		}
	}
	ix, err := r.ReadIndex()
	if err != nil {
		return err
	}
	for _, p := range ix.Paths() {
		tracked[p] = true
	}

	var stale []string
	for p := range tracked {
		if !keep[p] {
			stale = append(stale, p)
		}
	}
	if err := worktree.Clean(r.RootDir, stale); err != nil {
		return err
	}
	if toTree != "" {
		if err := worktree.Materialize(r.Store, toTree, r.RootDir); err != nil {
			return err
		}
	}

	next := index.New()
	for _, f := range target {
		abs := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat %q: %w", f.Path, err)
		}
		f.ModTime = info.ModTime().Unix()
		f.Size = info.Size()
		if err := next.Set(f); err != nil {
			return err
		}
	}
	return r.WriteIndex(next)
}
