// Package index implements the staging area: a flat mapping from
// slash-separated repository paths to blob ids and file modes.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/arbor/pkg/object"
)

// Entry records the staged state of a single file.
type Entry struct {
	Path    string      `json:"path"`
	Hash    object.Hash `json:"blob_hash"`
	Mode    string      `json:"mode"`
	ModTime int64       `json:"mod_time,omitempty"`
	Size    int64       `json:"size,omitempty"`
}

// Index holds the full staging area. Paths are unique.
type Index struct {
	entries map[string]Entry
}

type onDisk struct {
	Entries []Entry `json:"entries"`
}

// New returns an empty index.
func New() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// FromEntries builds an index from a list of entries, validating every path.
func FromEntries(entries []Entry) (*Index, error) {
	ix := New()
	for _, e := range entries {
		if err := ix.Set(e); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// ValidPath checks that p is a clean, relative, slash-separated path with no
// empty, "." or ".." segments.
func ValidPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q is absolute", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if err := object.ValidateEntryName(seg); err != nil {
			return fmt.Errorf("path %q: %w", p, err)
		}
	}
	return nil
}

// Set stages e, replacing any entry at the same path. An empty mode means a
// regular file.
func (ix *Index) Set(e Entry) error {
	if err := ValidPath(e.Path); err != nil {
		return fmt.Errorf("index set: %w", err)
	}
	if !object.ValidHash(string(e.Hash)) {
		return fmt.Errorf("index set %q: invalid blob hash %q", e.Path, e.Hash)
	}
	switch e.Mode {
	case "":
		e.Mode = object.TreeModeFile
	case object.TreeModeFile, object.TreeModeExecutable:
	default:
		return fmt.Errorf("index set %q: unsupported mode %q", e.Path, e.Mode)
	}
	ix.entries[e.Path] = e
	return nil
}

// Remove unstages path and reports whether it was present.
func (ix *Index) Remove(path string) bool {
	_, ok := ix.entries[path]
	delete(ix.entries, path)
	return ok
}

// Get returns the entry staged at path.
func (ix *Index) Get(path string) (Entry, bool) {
	e, ok := ix.entries[path]
	return e, ok
}

// Len returns the number of staged paths.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns a copy of all entries sorted by path.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths returns the staged paths in ascending order.
func (ix *Index) Paths() []string {
	out := make([]string, 0, len(ix.entries))
	for p := range ix.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Read loads an index file. A missing file yields an empty index.
func Read(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var disk onDisk
	if err := json.Unmarshal(data, &disk); err != nil {
		return nil, fmt.Errorf("read index: unmarshal: %w", err)
	}
	ix, err := FromEntries(disk.Entries)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return ix, nil
}

// Write atomically replaces the index file at path.
func (ix *Index) Write(path string) error {
	data, err := json.MarshalIndent(onDisk{Entries: ix.Entries()}, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("write index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write index: rename: %w", err)
	}
	return nil
}

// Equal reports whether two indexes stage the same paths with the same blob
// ids and modes. File metadata used for change detection is ignored.
func Equal(a, b *Index) bool {
	if a.Len() != b.Len() {
		return false
	}
	for p, ea := range a.entries {
		eb, ok := b.entries[p]
		if !ok || ea.Hash != eb.Hash || ea.Mode != eb.Mode {
			return false
		}
	}
	return true
}
