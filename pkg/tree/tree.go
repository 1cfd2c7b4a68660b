// Package tree converts between the flat index and hierarchical tree objects.
package tree

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/object"
)

// ErrPathConflict is returned when one path is both a file and a directory
// prefix of another path.
var ErrPathConflict = errors.New("path is both a file and a directory")

// Writer stores tree objects.
type Writer interface {
	WriteTree(*object.TreeObj) (object.Hash, error)
}

// Reader loads tree objects.
type Reader interface {
	ReadTree(object.Hash) (*object.TreeObj, error)
}

// Build converts flat index entries into a hierarchy of tree objects, writing
// every tree to w and returning the root id.
//
// Directories are processed deepest-first from an explicit list, so each
// child tree id is known before its parent is encoded. The result depends
// only on the set of entries, never on their order. An empty entry list
// yields the empty tree.
func Build(w Writer, entries []index.Entry) (object.Hash, error) {
	files := make(map[string]struct{}, len(entries))
	children := map[string][]object.TreeEntry{"": nil}

	for _, e := range entries {
		if err := index.ValidPath(e.Path); err != nil {
			return "", fmt.Errorf("build tree: %w", err)
		}
		if _, dup := files[e.Path]; dup {
			return "", fmt.Errorf("build tree: duplicate path %q", e.Path)
		}
		files[e.Path] = struct{}{}

		dir, name := splitPath(e.Path)

		// Register every ancestor directory. A registered directory already
		// has all of its own ancestors.
		for d := dir; d != ""; d, _ = splitPath(d) {
			if _, ok := children[d]; ok {
				break
			}
			children[d] = nil
		}

		mode := e.Mode
		if mode == "" {
			mode = object.TreeModeFile
		}
		children[dir] = append(children[dir], object.TreeEntry{
			Name: name,
			Mode: mode,
			Type: object.TypeBlob,
			Hash: e.Hash,
		})
	}

	dirs := make([]string, 0, len(children))
	for d := range children {
		if _, isFile := files[d]; isFile {
			return "", fmt.Errorf("build tree: %q: %w", d, ErrPathConflict)
		}
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		di, dj := depth(dirs[i]), depth(dirs[j])
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	var root object.Hash
	for _, d := range dirs {
		h, err := w.WriteTree(&object.TreeObj{Entries: children[d]})
		if err != nil {
			return "", fmt.Errorf("build tree %q: %w", d, err)
		}
		if d == "" {
			root = h
			continue
		}
		parent, name := splitPath(d)
		children[parent] = append(children[parent], object.TreeEntry{
			Name: name,
			Mode: object.TreeModeDir,
			Type: object.TypeTree,
			Hash: h,
		})
	}
	return root, nil
}

// Flatten walks the tree rooted at h and returns every file with its full
// slash-separated path, sorted by path.
func Flatten(r Reader, h object.Hash) ([]index.Entry, error) {
	type frame struct {
		hash   object.Hash
		prefix string
	}

	var out []index.Entry
	stack := []frame{{hash: h}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		treeObj, err := r.ReadTree(top.hash)
		if err != nil {
			return nil, fmt.Errorf("flatten tree: read %s: %w", top.hash, err)
		}
		for _, entry := range treeObj.Entries {
			fullPath := joinPath(top.prefix, entry.Name)
			if entry.IsTree() {
				stack = append(stack, frame{hash: entry.Hash, prefix: fullPath})
				continue
			}
			out = append(out, index.Entry{Path: fullPath, Hash: entry.Hash, Mode: entry.Mode})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Lookup returns the entry at relPath inside the tree rooted at h. The entry
// may be a blob or a subtree.
func Lookup(r Reader, h object.Hash, relPath string) (object.TreeEntry, bool, error) {
	if relPath == "" {
		return object.TreeEntry{}, false, nil
	}
	parts := strings.Split(relPath, "/")
	current := h

	for i, part := range parts {
		treeObj, err := r.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}

		var (
			entry object.TreeEntry
			found bool
		)
		for _, te := range treeObj.Entries {
			if te.Name == part {
				entry = te
				found = true
				break
			}
		}
		if !found {
			return object.TreeEntry{}, false, nil
		}
		if i == len(parts)-1 {
			return entry, true, nil
		}
		if !entry.IsTree() {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}

	return object.TreeEntry{}, false, nil
}

func splitPath(p string) (dir, name string) {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

func depth(dir string) int {
	if dir == "" {
		return -1
	}
	return strings.Count(dir, "/")
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
