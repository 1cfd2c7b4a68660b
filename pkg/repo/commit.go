package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/graph"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
)

// Commit records the index as a new commit on top of HEAD.
//
//  1. Build the tree from the index.
//  2. Parent is the commit HEAD resolves to (none on an unborn branch),
//     plus MERGE_HEAD when finishing a conflicted merge.
//  3. Write the commit through the graph, which checks the tree and
//     parents exist.
//  4. Advance the branch (or detached HEAD) with a compare-and-swap from
//     the parent observed in step 2.
//
// An empty author falls back to the configured one. Committing a tree
// identical to the parent's fails with ErrNothingToCommit unless a merge is
// being concluded.
func (r *Repo) Commit(ctx context.Context, message, author string) (object.Hash, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit: empty message")
	}
	if author == "" {
		author = r.Config.Author()
	}

	ix, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	treeHash, err := tree.Build(r.Store, ix.Entries())
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	st, err := r.readHead(ctx)
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}
	mergeHead, err := r.readMergeHead()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	var parents []object.Hash
	if st.commit != "" {
		parents = append(parents, st.commit)
	}
	if mergeHead != "" {
		parents = append(parents, mergeHead)
	} else {
		parentTree, err := r.commitTree(st.commit)
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
		if (st.commit == "" && ix.Len() == 0) || (st.commit != "" && parentTree == treeHash) {
			return "", fmt.Errorf("commit: %w", ErrNothingToCommit)
		}
	}

	h, err := r.Graph.CreateCommit(treeHash, parents, author, message, r.now().Unix())
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	subject, _, _ := strings.Cut(message, "\n")
	reason := "commit: " + subject
	if mergeHead != "" {
		reason = "commit (merge): " + subject
	}
	if err := r.advanceHead(ctx, st, h, reason); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if mergeHead != "" {
		if err := r.clearMergeState(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}

	r.Logger.Debug("created commit",
		zap.String("commit", h.Short()),
		zap.String("tree", treeHash.Short()),
		zap.Int("parents", len(parents)))
	return h, nil
}

// Log lists commits reachable from rev by first-parent links, newest first.
// An unborn HEAD yields an empty log.
func (r *Repo) Log(ctx context.Context, rev string, limit int) ([]graph.Entry, error) {
	if rev == "" {
		rev = "HEAD"
	}
	if rev == "HEAD" {
		st, err := r.readHead(ctx)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		if st.commit == "" {
			return nil, nil
		}
		return r.Graph.Log(st.commit, limit)
	}
	start, err := r.ResolveRevision(ctx, rev)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}
	return r.Graph.Log(start, limit)
}

func (r *Repo) readMergeHead() (object.Hash, error) {
	data, err := os.ReadFile(r.metaPath("MERGE_HEAD"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read MERGE_HEAD: %w", err)
	}
	h := object.Hash(strings.TrimSpace(string(data)))
	if !object.ValidHash(string(h)) {
		return "", fmt.Errorf("read MERGE_HEAD: invalid id %q", h)
	}
	return h, nil
}

func (r *Repo) clearMergeState() error {
	for _, name := range []string{"MERGE_HEAD", "MERGE_MSG"} {
		if err := os.Remove(r.metaPath(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear merge state: %w", err)
		}
	}
	return nil
}
