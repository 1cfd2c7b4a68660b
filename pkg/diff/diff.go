// Package diff computes differences between trees and between blobs.
package diff

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
)

// ChangeKind classifies a change to one file path.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Modified
	TypeChanged
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	case TypeChanged:
		return "type-changed"
	default:
		return "unknown"
	}
}

// Change describes one path that differs between two trees. Before is nil
// for Added and After is nil for Removed.
type Change struct {
	Kind   ChangeKind
	Path   string
	Before *object.TreeEntry
	After  *object.TreeEntry
}

// Trees reports every file path that differs between the trees a and b,
// sorted by path. An empty id stands for "no tree", so every file on the
// other side is Added or Removed. Subtrees with equal ids are skipped
// without being read.
//
// Added and removed directories are expanded to the files beneath them. A
// name that is a blob on one side and a tree on the other yields one
// TypeChanged change at that path plus Added or Removed changes for the
// files under the tree side.
func Trees(r tree.Reader, a, b object.Hash) ([]Change, error) {
	type frame struct {
		prefix string
		a, b   object.Hash
	}

	var changes []Change
	stack := []frame{{a: a, b: b}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.a == top.b {
			continue
		}

		aEntries, err := readEntries(r, top.a)
		if err != nil {
			return nil, fmt.Errorf("diff trees: %w", err)
		}
		bEntries, err := readEntries(r, top.b)
		if err != nil {
			return nil, fmt.Errorf("diff trees: %w", err)
		}

		names := make(map[string]struct{}, len(aEntries)+len(bEntries))
		for name := range aEntries {
			names[name] = struct{}{}
		}
		for name := range bEntries {
			names[name] = struct{}{}
		}

		for name := range names {
			full := joinPath(top.prefix, name)
			ae, inA := aEntries[name]
			be, inB := bEntries[name]

			switch {
			case inA && !inB:
				if ae.IsTree() {
					expanded, err := expand(r, full, ae.Hash, Removed)
					if err != nil {
						return nil, err
					}
					changes = append(changes, expanded...)
				} else {
					changes = append(changes, Change{Kind: Removed, Path: full, Before: entryPtr(ae)})
				}

			case !inA && inB:
				if be.IsTree() {
					expanded, err := expand(r, full, be.Hash, Added)
					if err != nil {
						return nil, err
					}
					changes = append(changes, expanded...)
				} else {
					changes = append(changes, Change{Kind: Added, Path: full, After: entryPtr(be)})
				}

			case ae.IsTree() && be.IsTree():
				if ae.Hash != be.Hash {
					stack = append(stack, frame{prefix: full, a: ae.Hash, b: be.Hash})
				}

			case !ae.IsTree() && !be.IsTree():
				if ae.Hash != be.Hash || ae.Mode != be.Mode {
					changes = append(changes, Change{Kind: Modified, Path: full, Before: entryPtr(ae), After: entryPtr(be)})
				}

			default:
				changes = append(changes, Change{Kind: TypeChanged, Path: full, Before: entryPtr(ae), After: entryPtr(be)})
				if ae.IsTree() {
					expanded, err := expand(r, full, ae.Hash, Removed)
					if err != nil {
						return nil, err
					}
					changes = append(changes, expanded...)
				} else {
					expanded, err := expand(r, full, be.Hash, Added)
					if err != nil {
						return nil, err
					}
					changes = append(changes, expanded...)
				}
			}
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes, nil
}

func readEntries(r tree.Reader, h object.Hash) (map[string]object.TreeEntry, error) {
	out := make(map[string]object.TreeEntry)
	if h == "" {
		return out, nil
	}
	treeObj, err := r.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", h, err)
	}
	for _, e := range treeObj.Entries {
		out[e.Name] = e
	}
	return out, nil
}

// expand lists every file under the subtree h as a change of the given kind.
func expand(r tree.Reader, prefix string, h object.Hash, kind ChangeKind) ([]Change, error) {
	files, err := tree.Flatten(r, h)
	if err != nil {
		return nil, fmt.Errorf("diff trees: expand %s: %w", prefix, err)
	}
	out := make([]Change, 0, len(files))
	for _, f := range files {
		full := joinPath(prefix, f.Path)
		e := &object.TreeEntry{Name: path.Base(full), Mode: f.Mode, Type: object.TypeBlob, Hash: f.Hash}
		c := Change{Kind: kind, Path: full}
		if kind == Removed {
			c.Before = e
		} else {
			c.After = e
		}
		out = append(out, c)
	}
	return out, nil
}

func entryPtr(e object.TreeEntry) *object.TreeEntry {
	return &e
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Filter keeps the changes at or beneath any of paths. An empty list or a
// "." entry keeps everything.
func Filter(changes []Change, paths []string) []Change {
	if len(paths) == 0 {
		return changes
	}
	var out []Change
	for _, c := range changes {
		for _, p := range paths {
			p = strings.TrimSuffix(p, "/")
			if p == "." || p == "" || c.Path == p || strings.HasPrefix(c.Path, p+"/") {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
