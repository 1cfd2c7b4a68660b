package worktree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
)

// Store is the object access needed to write a tree out.
type Store interface {
	tree.Reader
	ReadBlob(object.Hash) (*object.Blob, error)
}

// Materialize writes every file of treeID under dir, creating parent
// directories and applying the executable bit from the entry mode. Files
// not in the tree are left alone; use Clean to remove them.
func Materialize(store Store, treeID object.Hash, dir string) error {
	files, err := tree.Flatten(store, treeID)
	if err != nil {
		return fmt.Errorf("materialize: %w", err)
	}
	for _, f := range files {
		if _, err := cleanRel(f.Path); err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
		abs := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("materialize: mkdir %q: %w", f.Path, err)
		}
		blob, err := store.ReadBlob(f.Hash)
		if err != nil {
			return fmt.Errorf("materialize: read blob for %q: %w", f.Path, err)
		}
		perm := Perm(f.Mode)
		if err := os.WriteFile(abs, blob.Data, perm); err != nil {
			return fmt.Errorf("materialize: write %q: %w", f.Path, err)
		}
		// WriteFile keeps the permissions of a file that already existed.
		if err := os.Chmod(abs, perm); err != nil {
			return fmt.Errorf("materialize: chmod %q: %w", f.Path, err)
		}
	}
	return nil
}

// Clean removes the given tracked paths from dir along with any parent
// directories left empty. Paths that are already gone are skipped.
func Clean(dir string, paths []string) error {
	for _, p := range paths {
		if _, err := cleanRel(p); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		abs := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clean: remove %q: %w", p, err)
		}
		removeEmptyParents(dir, filepath.Dir(abs))
	}
	return nil
}

// removeEmptyParents removes empty directories up to, but not including,
// root.
func removeEmptyParents(root, dir string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// ModeFromInfo maps file permissions to a tree entry mode.
func ModeFromInfo(info fs.FileInfo) string {
	if info.Mode()&0o111 != 0 {
		return object.TreeModeExecutable
	}
	return object.TreeModeFile
}

// Perm maps a tree entry mode to file permissions.
func Perm(mode string) fs.FileMode {
	if mode == object.TreeModeExecutable {
		return 0o755
	}
	return 0o644
}
