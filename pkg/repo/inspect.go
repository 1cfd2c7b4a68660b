package repo

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/odvcencio/arbor/pkg/diff"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
	"github.com/odvcencio/arbor/pkg/worktree"
)

// Diff lists the file changes between two revisions. An empty to compares
// against the staged index instead of a commit. HEAD on an unborn branch
// stands for the empty tree.
func (r *Repo) Diff(ctx context.Context, from, to string) ([]diff.Change, error) {
	a, err := r.revisionTree(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	var b object.Hash
	if to == "" {
		b, err = r.indexTree()
	} else {
		b, err = r.revisionTree(ctx, to)
	}
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	return diff.Trees(r.Store, a, b)
}

// DiffWorktree lists tracked files whose worktree content or mode differs
// from the index. After of a change describes the file on disk; its blob is
// hashed but not stored. Untracked files are not reported.
func (r *Repo) DiffWorktree(ctx context.Context) ([]diff.Change, error) {
	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	var changes []diff.Change
	for _, e := range ix.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("diff: %w", err)
		}
		ws, err := r.worktreeStatus(e)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", e.Path, err)
		}
		before := &object.TreeEntry{Name: path.Base(e.Path), Mode: e.Mode, Type: object.TypeBlob, Hash: e.Hash}
		switch ws {
		case StatusClean:
			continue
		case StatusDeleted:
			changes = append(changes, diff.Change{Kind: diff.Removed, Path: e.Path, Before: before})
			continue
		}
		abs := filepath.Join(r.RootDir, filepath.FromSlash(e.Path))
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", e.Path, err)
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", e.Path, err)
		}
		after := &object.TreeEntry{
			Name: before.Name,
			Mode: worktree.ModeFromInfo(info),
			Type: object.TypeBlob,
			Hash: r.Store.Hash(object.TypeBlob, data),
		}
		changes = append(changes, diff.Change{Kind: diff.Modified, Path: e.Path, Before: before, After: after})
	}
	return changes, nil
}

// Patch renders changes between two trees as a unified patch with the given
// context.
func (r *Repo) Patch(changes []diff.Change, context int) (string, error) {
	return r.renderPatch(changes, context, func(c diff.Change) ([]byte, error) {
		return r.changeSide(c.After)
	})
}

// WorktreePatch renders changes from DiffWorktree, reading the new side of
// each change from disk.
func (r *Repo) WorktreePatch(changes []diff.Change, context int) (string, error) {
	return r.renderPatch(changes, context, r.worktreeSide)
}

func (r *Repo) worktreeSide(c diff.Change) ([]byte, error) {
	if c.After == nil {
		return nil, nil
	}
	data, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(c.Path)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.Path, err)
	}
	return data, nil
}
func (r *Repo) renderPatch(changes []diff.Change, context int, after func(diff.Change) ([]byte, error)) (string, error) {
	var b strings.Builder
	for _, c := range changes {
		oldData, err := r.changeSide(c.Before)
		if err != nil {
			return "", err
		}
		newData, err := after(c)
		if err != nil {
			return "", err
		}
		aName, bName := "a/"+c.Path, "b/"+c.Path
		if c.Before == nil {
			aName = "/dev/null"
		}
		if c.After == nil {
			bName = "/dev/null"
		}
		if c.Before != nil && c.After != nil && c.Before.Mode != c.After.Mode {
			fmt.Fprintf(&b, "mode %s: %s -> %s\n", c.Path, c.Before.Mode, c.After.Mode)
		}
		text, err := diff.Unified(aName, bName, oldData, newData, context)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// changeSide returns the blob content behind one side of a change. Missing
// sides and subtrees read as empty.
func (r *Repo) changeSide(e *object.TreeEntry) ([]byte, error) {
	if e == nil || e.IsTree() {
		return nil, nil
	}
	blob, err := r.Store.ReadBlob(e.Hash)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", e.Hash.Short(), err)
	}
	return blob.Data, nil
}

func (r *Repo) revisionTree(ctx context.Context, rev string) (object.Hash, error) {
	if strings.TrimSpace(rev) == "HEAD" {
		st, err := r.readHead(ctx)
		if err != nil {
			return "", err
		}
		return r.commitTree(st.commit)
	}
	h, err := r.ResolveRevision(ctx, rev)
	if err != nil {
		return "", err
	}
	return r.commitTree(h)
}

// indexTree writes the tree objects for the current index.
func (r *Repo) indexTree() (object.Hash, error) {
	ix, err := r.ReadIndex()
	if err != nil {
		return "", err
	}
	if ix.Len() == 0 {
		return "", nil
	}
	return tree.Build(r.Store, ix.Entries())
}

// Verify checks every stored object and everything reachable from the refs,
// HEAD and a pending MERGE_HEAD.
func (r *Repo) Verify(ctx context.Context) (*object.VerifySummary, error) {
	var roots []object.Hash
	list, err := r.Refs.List(ctx, "refs/")
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	for _, h := range list {
		roots = append(roots, h)
	}
	head, err := r.Refs.ReadHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if head.IsDetached() {
		roots = append(roots, head.Detached)
	}
	mergeHead, err := r.readMergeHead()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	if mergeHead != "" {
		roots = append(roots, mergeHead)
	}
	return r.Store.Verify(roots...)
}

// CatFile returns the type and raw payload of an object named by a revision
// or an id.
func (r *Repo) CatFile(ctx context.Context, name string) (object.ObjectType, []byte, error) {
	h, err := r.resolveObject(ctx, name)
	if err != nil {
		return "", nil, fmt.Errorf("cat-file: %w", err)
	}
	return r.Store.Read(h)
}

// resolveObject is ResolveRevision widened to any object kind, so trees and
// blobs can be named by id or prefix.
func (r *Repo) resolveObject(ctx context.Context, name string) (object.Hash, error) {
	if object.ValidHash(name) && r.Store.Has(object.Hash(name)) {
		return object.Hash(name), nil
	}
	return r.ResolveRevision(ctx, name)
}
