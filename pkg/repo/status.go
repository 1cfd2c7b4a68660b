package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
	"github.com/odvcencio/arbor/pkg/worktree"
)

// FileStatus is the state of a path in one comparison.
type FileStatus int

const (
	StatusClean     FileStatus = iota // no difference
	StatusAdded                       // in the index, not in HEAD
	StatusModified                    // content or mode differs
	StatusDeleted                     // missing from the newer side
	StatusUntracked                   // on disk, not in the index
)

func (s FileStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusUntracked:
		return "untracked"
	default:
		return "unknown"
	}
}

// StatusEntry describes one path that differs somewhere.
type StatusEntry struct {
	Path        string
	IndexStatus FileStatus // index vs HEAD
	WorkStatus  FileStatus // worktree vs index
}

// statusRacyWindow is how recent an mtime must be before stat data alone is
// no longer trusted to prove a file unchanged.
const statusRacyWindow = 2 * time.Second

// Status compares HEAD, the index and the worktree and lists every path that
// is not clean in both comparisons, sorted by path.
func (r *Repo) Status(ctx context.Context) ([]StatusEntry, error) {
	st, err := r.readHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	headTree, err := r.commitTree(st.commit)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	headFiles := map[string]index.Entry{}
	if headTree != "" {
		files, err := tree.Flatten(r.Store, headTree)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		for _, f := range files {
			headFiles[f.Path] = f
		}
	}

	ix, err := r.ReadIndex()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	ig, err := worktree.LoadIgnore(r.RootDir)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	work, err := worktree.ScanWith(r.RootDir, ig)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	byPath := map[string]*StatusEntry{}
	entry := func(p string) *StatusEntry {
		e, ok := byPath[p]
		if !ok {
			e = &StatusEntry{Path: p}
			byPath[p] = e
		}
		return e
	}

	for _, e := range ix.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		if h, ok := headFiles[e.Path]; !ok {
			entry(e.Path).IndexStatus = StatusAdded
		} else if h.Hash != e.Hash || h.Mode != e.Mode {
			entry(e.Path).IndexStatus = StatusModified
		}

		ws, err := r.worktreeStatus(e)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		if ws != StatusClean {
			entry(e.Path).WorkStatus = ws
		}
	}
	for p := range headFiles {
		if _, ok := ix.Get(p); !ok {
			entry(p).IndexStatus = StatusDeleted
		}
	}
	for _, f := range work {
		if _, ok := ix.Get(f.Path); !ok {
			entry(f.Path).WorkStatus = StatusUntracked
		}
	}

	out := make([]StatusEntry, 0, len(byPath))
	for _, e := range byPath {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// worktreeStatus compares one index entry with the file on disk. Matching
// size, mode and a settled mtime skip hashing.
func (r *Repo) worktreeStatus(e index.Entry) (FileStatus, error) {
	abs := filepath.Join(r.RootDir, filepath.FromSlash(e.Path))
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusDeleted, nil
	}
	if err != nil {
		return StatusClean, err
	}
	if info.IsDir() {
		return StatusDeleted, nil
	}
	mode := worktree.ModeFromInfo(info)
	if mode != e.Mode {
		return StatusModified, nil
	}
	if e.Size == info.Size() && e.ModTime == info.ModTime().Unix() && r.now().Sub(info.ModTime()) >= statusRacyWindow {
		return StatusClean, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return StatusClean, err
	}
	if r.Store.Hash(object.TypeBlob, data) != e.Hash {
		return StatusModified, nil
	}
	return StatusClean, nil
}

// ensureClean fails when tracked files have staged or unstaged changes.
// Untracked files are allowed.
func (r *Repo) ensureClean(ctx context.Context) error {
	entries, err := r.Status(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IndexStatus != StatusClean || (e.WorkStatus != StatusClean && e.WorkStatus != StatusUntracked) {
			return fmt.Errorf("%w (%s)", ErrDirtyWorktree, e.Path)
		}
	}
	return nil
}
