package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/merge"
	"github.com/odvcencio/arbor/pkg/object"
)

// MergeReport is the outcome of a repository-level merge.
type MergeReport struct {
	Ours, Theirs object.Hash
	Base         object.Hash // empty for unrelated histories
	UpToDate     bool        // theirs is already contained in ours
	FastForward  bool        // ours was an ancestor of theirs; no merge commit
	Forced       bool        // a fast-forward was possible but a merge commit was recorded
	Commit       object.Hash // new HEAD commit, when one was recorded or fast-forwarded to
	Tree         object.Hash
	Conflicts    []merge.Conflict
}

// MergeOptions tunes a repository-level merge.
type MergeOptions struct {
	Author        string // merge commit author; the configured author when empty
	NoFastForward bool   // record a merge commit even when HEAD could fast-forward
}

// HasConflicts reports whether the merge stopped for manual resolution.
func (m *MergeReport) HasConflicts() bool { return len(m.Conflicts) > 0 }

// Merge merges rev into the current HEAD.
//
//   - If rev is already reachable from HEAD nothing happens.
//   - If HEAD is reachable from rev, HEAD fast-forwards to rev without a
//     merge commit, unless opts.NoFastForward asks for one with rev's tree.
//   - Otherwise the trees are merged against the best common ancestor. A
//     clean result is committed with parents (HEAD, rev). A conflicted
//     result is written to the worktree and index, MERGE_HEAD is recorded
//     and the next Commit concludes the merge.
//
// Every ref movement is a compare-and-swap against the HEAD read at the
// start. When the swap loses, the worktree and index are switched back to
// HEAD's tree before ErrRefUpdateConflict is returned.
func (r *Repo) Merge(ctx context.Context, rev string, opts MergeOptions) (*MergeReport, error) {
	if err := r.ensureNoMerge(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.ensureClean(ctx); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	st, err := r.readHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if st.commit == "" {
		return nil, fmt.Errorf("merge: HEAD has no commits yet")
	}
	theirs, err := r.ResolveRevision(ctx, rev)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report := &MergeReport{Ours: st.commit, Theirs: theirs}

	contained, err := r.Graph.IsAncestor(theirs, st.commit)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if contained {
		report.UpToDate = true
		report.Commit = st.commit
		report.Tree, err = r.commitTree(st.commit)
		return report, err
	}

	oursTree, err := r.commitTree(st.commit)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirsTree, err := r.commitTree(theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	ff, err := r.Graph.IsAncestor(st.commit, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if ff && !opts.NoFastForward {
		if err := r.moveHead(ctx, st, oursTree, theirsTree, theirs, "merge "+rev+": fast-forward"); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		report.Base = st.commit
		report.FastForward = true
		report.Commit = theirs
		report.Tree = theirsTree
		r.Logger.Debug("fast-forward merge", zap.String("rev", rev), zap.String("commit", theirs.Short()))
		return report, nil
	}
	message := fmt.Sprintf("Merge %s", rev)
	if opts.Author == "" {
		opts.Author = r.Config.Author()
	}
	if ff {
		h, err := r.Graph.CreateCommit(theirsTree, []object.Hash{st.commit, theirs}, opts.Author, message, r.now().Unix())
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if err := r.moveHead(ctx, st, oursTree, theirsTree, h, "merge "+rev+": no fast-forward"); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		report.Base = st.commit
		report.Forced = true
		report.Commit = h
		report.Tree = theirsTree
		r.Logger.Debug("merge commit instead of fast-forward", zap.String("rev", rev), zap.String("commit", h.Short()))
		return report, nil
	}

	base, found, err := r.Graph.MergeBase(st.commit, theirs)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	var baseTree object.Hash
	if found {
		report.Base = base
		if baseTree, err = r.commitTree(base); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
	}

	res, err := merge.Merge(ctx, r.Store, baseTree, oursTree, theirsTree)
	if err != nil {
		return nil, err
	}
	report.Tree = res.Tree
	report.Conflicts = res.Conflicts

	if res.HasConflicts() {
		if err := r.switchTree(oursTree, res.Tree); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if err := r.writeMergeState(theirs, message); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		r.Logger.Debug("merge stopped with conflicts",
			zap.String("rev", rev),
			zap.Strings("paths", res.ConflictPaths()))
		return report, nil
	}

	h, err := r.Graph.CreateCommit(res.Tree, []object.Hash{st.commit, theirs}, opts.Author, message, r.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.moveHead(ctx, st, oursTree, res.Tree, h, "merge "+rev); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	report.Commit = h
	r.Logger.Debug("merged",
		zap.String("rev", rev),
		zap.String("base", base.Short()),
		zap.String("commit", h.Short()))
	return report, nil
}

// moveHead switches the worktree and index from fromTree to toTree and then
// advances HEAD to next. If HEAD cannot be moved the files are switched back
// so nothing of the attempt stays visible.
func (r *Repo) moveHead(ctx context.Context, st headState, fromTree, toTree, next object.Hash, reason string) error {
	if err := r.switchTree(fromTree, toTree); err != nil {
		return err
	}
	if err := r.advanceHead(ctx, st, next, reason); err != nil {
		return r.restoreTree(toTree, fromTree, err)
	}
	return nil
}

// restoreTree undoes a switchTree after a failed ref update. cause is
// returned unchanged when the restore succeeds.
func (r *Repo) restoreTree(applied, previous object.Hash, cause error) error {
	if err := r.switchTree(applied, previous); err != nil {
		return multierror.Append(cause, fmt.Errorf("restore worktree: %w", err))
	}
	r.Logger.Debug("restored worktree after failed ref update", zap.Error(cause))
	return cause
}

// AbortMerge discards a conflicted merge, restoring the worktree and index
// to HEAD.
func (r *Repo) AbortMerge(ctx context.Context) error {
	mergeHead, err := r.readMergeHead()
	if err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	if mergeHead == "" {
		return fmt.Errorf("merge abort: %w", ErrNoMergeInProgress)
	}
	st, err := r.readHead(ctx)
	if err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	headTree, err := r.commitTree(st.commit)
	if err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	if err := r.switchTree(headTree, headTree); err != nil {
		return fmt.Errorf("merge abort: %w", err)
	}
	return r.clearMergeState()
}

// MergeInProgress reports whether a conflicted merge awaits a commit.
func (r *Repo) MergeInProgress() (bool, error) {
	h, err := r.readMergeHead()
	return h != "", err
}

func (r *Repo) ensureNoMerge() error {
	inProgress, err := r.MergeInProgress()
	if err != nil {
		return err
	}
	if inProgress {
		return ErrMergeInProgress
	}
	return nil
}

func (r *Repo) writeMergeState(theirs object.Hash, message string) error {
	if err := os.WriteFile(r.metaPath("MERGE_HEAD"), []byte(string(theirs)+"\n"), 0o644); err != nil {
		return fmt.Errorf("write MERGE_HEAD: %w", err)
	}
	if err := os.WriteFile(r.metaPath("MERGE_MSG"), []byte(message+"\n"), 0o644); err != nil {
		return fmt.Errorf("write MERGE_MSG: %w", err)
	}
	return nil
}

// MergeMessage returns the prepared message of a conflicted merge.
func (r *Repo) MergeMessage() (string, error) {
	data, err := os.ReadFile(r.metaPath("MERGE_MSG"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// MergeBases returns the best common ancestors of two revisions in
// ascending id order.
func (r *Repo) MergeBases(ctx context.Context, a, b string) ([]object.Hash, error) {
	ha, err := r.ResolveRevision(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("merge-base: %w", err)
	}
	hb, err := r.ResolveRevision(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("merge-base: %w", err)
	}
	return r.Graph.MergeBases(ha, hb)
}
