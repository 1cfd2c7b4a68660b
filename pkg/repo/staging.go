package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/worktree"
)

// ReadIndex loads .arbor/index. A missing file is an empty index.
func (r *Repo) ReadIndex() (*index.Index, error) {
	ix, err := index.Read(r.indexPath())
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return ix, nil
}

// WriteIndex atomically replaces .arbor/index.
func (r *Repo) WriteIndex(ix *index.Index) error {
	if err := ix.Write(r.indexPath()); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Add stages files. Paths are relative to the repository root; a directory
// (including ".") stages every non-ignored file beneath it. A tracked path
// that no longer exists on disk is staged as a deletion.
//
// Every path is checked by the worktree policy before anything is written,
// so a rejected path leaves the index untouched.
func (r *Repo) Add(ctx context.Context, paths []string) error {
	ix, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	files, removed, err := r.expandPaths(ix, paths)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("add: %w", err)
		}
		e, err := r.stageFile(rel)
		if err != nil {
			return fmt.Errorf("add %s: %w", rel, err)
		}
		if err := ix.Set(e); err != nil {
			return fmt.Errorf("add %s: %w", rel, err)
		}
	}
	for _, rel := range removed {
		ix.Remove(rel)
	}

	if err := r.WriteIndex(ix); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	r.Logger.Debug("staged paths", zap.Int("files", len(files)), zap.Int("removed", len(removed)))
	return nil
}

// expandPaths validates the requested paths and splits them into files to
// hash and tracked paths that disappeared.
func (r *Repo) expandPaths(ix *index.Index, paths []string) (files, removed []string, err error) {
	ig, err := worktree.LoadIgnore(r.RootDir)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]bool)
	addFile := func(rel string) error {
		if seen[rel] {
			return nil
		}
		if err := r.policy.Validate(rel); err != nil {
			return err
		}
		seen[rel] = true
		files = append(files, rel)
		return nil
	}

	for _, p := range paths {
		rel := filepath.ToSlash(filepath.Clean(p))
		if rel != "." {
			if err := worktree.ValidatePath(rel); errors.Is(err, worktree.ErrPathOutsideRepository) {
				return nil, nil, err
			}
		}
		abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
		info, statErr := os.Stat(abs)

		switch {
		case rel == "." || (statErr == nil && info.IsDir()):
			scanned, err := worktree.ScanWith(abs, ig)
			if err != nil {
				return nil, nil, err
			}
			prefix := ""
			if rel != "." {
				prefix = rel + "/"
			}
			for _, f := range scanned {
				if err := addFile(prefix + f.Path); err != nil {
					return nil, nil, err
				}
			}
			for _, tracked := range ix.Paths() {
				if (prefix == "" || strings.HasPrefix(tracked, prefix)) && !seen[tracked] {
					if _, err := os.Lstat(filepath.Join(r.RootDir, filepath.FromSlash(tracked))); errors.Is(err, fs.ErrNotExist) {
						removed = append(removed, tracked)
					}
				}
			}

		case statErr == nil:
			if err := addFile(rel); err != nil {
				return nil, nil, err
			}

		case errors.Is(statErr, fs.ErrNotExist):
			if _, tracked := ix.Get(rel); tracked {
				removed = append(removed, rel)
				continue
			}
			return nil, nil, fmt.Errorf("pathspec %q did not match any files", p)

		default:
			return nil, nil, statErr
		}
	}
	return files, removed, nil
}

func (r *Repo) stageFile(rel string) (index.Entry, error) {
	abs := filepath.Join(r.RootDir, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return index.Entry{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return index.Entry{}, err
	}
	h, err := r.Store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return index.Entry{}, err
	}
	return index.Entry{
		Path:    rel,
		Hash:    h,
		Mode:    worktree.ModeFromInfo(info),
		ModTime: info.ModTime().Unix(),
		Size:    info.Size(),
	}, nil
}

// Remove unstages paths. Unless cached is set the files are also deleted
// from the worktree.
func (r *Repo) Remove(ctx context.Context, paths []string, cached bool) error {
	ix, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	var gone []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rm: %w", err)
		}
		rel := filepath.ToSlash(filepath.Clean(p))
		if !ix.Remove(rel) {
			return fmt.Errorf("rm: pathspec %q did not match any tracked files", p)
		}
		gone = append(gone, rel)
	}
	if !cached {
		if err := worktree.Clean(r.RootDir, gone); err != nil {
			return fmt.Errorf("rm: %w", err)
		}
	}
	if err := r.WriteIndex(ix); err != nil {
		return fmt.Errorf("rm: %w", err)
	}
	r.Logger.Debug("removed paths", zap.Strings("paths", gone), zap.Bool("cached", cached))
	return nil
}
