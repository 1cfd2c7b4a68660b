// Package merge three-way merges tree snapshots. It never touches refs or
// creates commits; conflicts are reported as part of the result.
package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/arbor/pkg/diff"
	"github.com/odvcencio/arbor/pkg/diff3"
	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
)

// Store is the object access the merge engine needs.
type Store interface {
	tree.Reader
	tree.Writer
	ReadBlob(object.Hash) (*object.Blob, error)
	WriteBlob(*object.Blob) (object.Hash, error)
}

// ConflictKind classifies why a path could not be merged automatically.
type ConflictKind int

const (
	ConflictContent      ConflictKind = iota // Both sides edited overlapping lines.
	ConflictAddAdd                           // Both sides added different content.
	ConflictDeleteModify                     // One side deleted what the other modified.
	ConflictType                             // Binary content or a blob/tree switch.
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictContent:
		return "content"
	case ConflictAddAdd:
		return "add/add"
	case ConflictDeleteModify:
		return "delete/modify"
	case ConflictType:
		return "type"
	default:
		return "unknown"
	}
}

// Version is one side's state of a conflicted path.
type Version struct {
	Hash object.Hash
	Mode string
	Type object.ObjectType
}

// Conflict describes a path that needs manual resolution. A nil version
// means the path does not exist on that side.
type Conflict struct {
	Path   string
	Kind   ConflictKind
	Base   *Version
	Ours   *Version
	Theirs *Version
}

// Result is the outcome of a merge. Tree is always set, including when
// conflicts exist; conflicted text files hold marker blobs.
type Result struct {
	Tree      object.Hash
	Conflicts []Conflict
}

// HasConflicts reports whether any path needs manual resolution.
func (r *Result) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// ConflictPaths returns the conflicted paths in ascending order.
func (r *Result) ConflictPaths() []string {
	out := make([]string, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		out = append(out, c.Path)
	}
	return out
}

// Merge combines the changes base→ours and base→theirs into a new tree.
// An empty base id merges two unrelated histories against the empty tree.
//
// The two tree diffs and the base listing are computed concurrently. Paths
// touched by only one side take that side's result; paths touched by both
// follow the conflict policy. The merged tree is written through
// tree.Build, so it is content-addressed like any other tree.
func Merge(ctx context.Context, store Store, base, ours, theirs object.Hash) (*Result, error) {
	var (
		baseFiles     []index.Entry
		oursChanges   []diff.Change
		theirsChanges []diff.Change
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if base == "" {
			return nil
		}
		files, err := tree.Flatten(store, base)
		if err != nil {
			return fmt.Errorf("base: %w", err)
		}
		baseFiles = files
		return gctx.Err()
	})
	g.Go(func() error {
		changes, err := diff.Trees(store, base, ours)
		if err != nil {
			return fmt.Errorf("ours: %w", err)
		}
		oursChanges = changes
		return gctx.Err()
	})
	g.Go(func() error {
		changes, err := diff.Trees(store, base, theirs)
		if err != nil {
			return fmt.Errorf("theirs: %w", err)
		}
		theirsChanges = changes
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	m := &merger{
		store:  store,
		result: make(map[string]index.Entry, len(baseFiles)),
		base:   make(map[string]index.Entry, len(baseFiles)),
		ours:   byPath(oursChanges),
		theirs: byPath(theirsChanges),
	}
	for _, f := range baseFiles {
		m.result[f.Path] = f
		m.base[f.Path] = f
	}

	for _, p := range touchedPaths(m.ours, m.theirs) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		if err := m.resolvePath(p); err != nil {
			return nil, fmt.Errorf("merge %s: %w", p, err)
		}
	}
	m.resolveFileDirClashes()

	entries := make([]index.Entry, 0, len(m.result))
	for _, e := range m.result {
		entries = append(entries, e)
	}
	treeHash, err := tree.Build(store, entries)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	sort.Slice(m.conflicts, func(i, j int) bool { return m.conflicts[i].Path < m.conflicts[j].Path })
	return &Result{Tree: treeHash, Conflicts: m.conflicts}, nil
}

type merger struct {
	store     Store
	result    map[string]index.Entry
	base      map[string]index.Entry
	ours      map[string]diff.Change
	theirs    map[string]diff.Change
	conflicts []Conflict
}

func byPath(changes []diff.Change) map[string]diff.Change {
	out := make(map[string]diff.Change, len(changes))
	for _, c := range changes {
		out[c.Path] = c
	}
	return out
}

func touchedPaths(ours, theirs map[string]diff.Change) []string {
	seen := make(map[string]struct{}, len(ours)+len(theirs))
	for p := range ours {
		seen[p] = struct{}{}
	}
	for p := range theirs {
		seen[p] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *merger) resolvePath(p string) error {
	oc, inOurs := m.ours[p]
	tc, inTheirs := m.theirs[p]

	switch {
	case inOurs && !inTheirs:
		m.apply(p, oc)
		return nil
	case !inOurs && inTheirs:
		m.apply(p, tc)
		return nil
	case sameOutcome(oc, tc):
		m.apply(p, oc)
		return nil
	}

	switch {
	case oc.Kind == diff.TypeChanged || tc.Kind == diff.TypeChanged:
		m.conflict(p, ConflictType, oc, tc)
		m.apply(p, oc)

	case oc.Kind == diff.Added && tc.Kind == diff.Added:
		return m.mergeAddAdd(p, oc, tc)

	case oc.Kind == diff.Removed:
		// tc is Modified; keep the modifying side's content.
		m.conflict(p, ConflictDeleteModify, oc, tc)
		m.apply(p, tc)

	case tc.Kind == diff.Removed:
		m.conflict(p, ConflictDeleteModify, oc, tc)
		m.apply(p, oc)

	default:
		return m.mergeModified(p, oc, tc)
	}
	return nil
}

// apply records one side's outcome for p.
func (m *merger) apply(p string, c diff.Change) {
	if c.After == nil || c.After.IsTree() {
		delete(m.result, p)
		return
	}
	m.result[p] = index.Entry{Path: p, Hash: c.After.Hash, Mode: c.After.Mode}
}

func sameOutcome(a, b diff.Change) bool {
	if a.After == nil || b.After == nil {
		return a.After == nil && b.After == nil
	}
	return a.After.Hash == b.After.Hash && a.After.Mode == b.After.Mode && a.After.Type == b.After.Type
}

func (m *merger) mergeAddAdd(p string, oc, tc diff.Change) error {
	m.conflict(p, ConflictAddAdd, oc, tc)

	oursData, theirsData, binary, err := m.readPair(oc.After.Hash, tc.After.Hash)
	if err != nil {
		return err
	}
	if binary {
		m.apply(p, oc)
		return nil
	}
	res := diff3.Merge(nil, oursData, theirsData)
	return m.writeMerged(p, res.Merged, oc.After.Mode)
}

func (m *merger) mergeModified(p string, oc, tc diff.Change) error {
	baseEntry := oc.Before

	mode, modeConflict := mergeMode(baseEntry.Mode, oc.After.Mode, tc.After.Mode)

	switch {
	case oc.After.Hash == tc.After.Hash:
		m.result[p] = index.Entry{Path: p, Hash: oc.After.Hash, Mode: mode}
		if modeConflict {
			m.conflict(p, ConflictContent, oc, tc)
		}
		return nil
	case oc.After.Hash == baseEntry.Hash:
		m.result[p] = index.Entry{Path: p, Hash: tc.After.Hash, Mode: mode}
		if modeConflict {
			m.conflict(p, ConflictContent, oc, tc)
		}
		return nil
	case tc.After.Hash == baseEntry.Hash:
		m.result[p] = index.Entry{Path: p, Hash: oc.After.Hash, Mode: mode}
		if modeConflict {
			m.conflict(p, ConflictContent, oc, tc)
		}
		return nil
	}

	baseBlob, err := m.store.ReadBlob(baseEntry.Hash)
	if err != nil {
		return err
	}
	oursData, theirsData, binary, err := m.readPair(oc.After.Hash, tc.After.Hash)
	if err != nil {
		return err
	}
	if binary || diff.IsBinary(baseBlob.Data) {
		m.conflict(p, ConflictType, oc, tc)
		m.apply(p, oc)
		return nil
	}

	res := diff3.Merge(baseBlob.Data, oursData, theirsData)
	if res.HasConflicts || modeConflict {
		m.conflict(p, ConflictContent, oc, tc)
	}
	return m.writeMerged(p, res.Merged, mode)
}

// mergeMode three-way merges a file mode. When both sides changed it
// differently, ours wins and the caller records a conflict.
func mergeMode(base, ours, theirs string) (string, bool) {
	switch {
	case ours == theirs:
		return ours, false
	case ours == base:
		return theirs, false
	case theirs == base:
		return ours, false
	default:
		return ours, true
	}
}

func (m *merger) readPair(oursHash, theirsHash object.Hash) ([]byte, []byte, bool, error) {
	o, err := m.store.ReadBlob(oursHash)
	if err != nil {
		return nil, nil, false, err
	}
	t, err := m.store.ReadBlob(theirsHash)
	if err != nil {
		return nil, nil, false, err
	}
	return o.Data, t.Data, diff.IsBinary(o.Data) || diff.IsBinary(t.Data), nil
}

func (m *merger) writeMerged(p string, data []byte, mode string) error {
	h, err := m.store.WriteBlob(&object.Blob{Data: data})
	if err != nil {
		return fmt.Errorf("write merged blob: %w", err)
	}
	m.result[p] = index.Entry{Path: p, Hash: h, Mode: mode}
	return nil
}

func (m *merger) conflict(p string, kind ConflictKind, oc, tc diff.Change) {
	c := Conflict{Path: p, Kind: kind, Ours: version(oc.After), Theirs: version(tc.After)}
	switch {
	case oc.Before != nil:
		c.Base = version(oc.Before)
	case tc.Before != nil:
		c.Base = version(tc.Before)
	}
	m.conflicts = append(m.conflicts, c)
}

func version(e *object.TreeEntry) *Version {
	if e == nil {
		return nil
	}
	return &Version{Hash: e.Hash, Mode: e.Mode, Type: e.Type}
}

// resolveFileDirClashes handles merged results where a path is a file and
// also a directory prefix of another file. That only happens when the two
// sides disagree about whether a name is a file or a directory; ours' view
// is kept and a type conflict is recorded.
func (m *merger) resolveFileDirClashes() {
	paths := make([]string, 0, len(m.result))
	for p := range m.result {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	conflicted := make(map[string]bool, len(m.conflicts))
	for _, c := range m.conflicts {
		conflicted[c.Path] = true
	}

	for i, p := range paths {
		if _, still := m.result[p]; !still {
			continue
		}
		prefix := p + "/"
		var under []string
		for _, q := range paths[i+1:] {
			// Sorted order puts "p-x" and "p.x" between p and p/..., so scan
			// until a path sorts past the prefix range.
			if strings.HasPrefix(q, prefix) {
				under = append(under, q)
			} else if q > prefix && !strings.HasPrefix(q, p) {
				break
			}
		}
		if len(under) == 0 {
			continue
		}

		if m.oursHasFile(p) {
			for _, q := range under {
				delete(m.result, q)
			}
		} else {
			delete(m.result, p)
		}
		if !conflicted[p] {
			conflicted[p] = true
			m.conflicts = append(m.conflicts, m.clashConflict(p))
		}
	}
}

func (m *merger) oursHasFile(p string) bool {
	if c, ok := m.ours[p]; ok {
		return c.After != nil && !c.After.IsTree()
	}
	_, ok := m.base[p]
	return ok
}

func (m *merger) clashConflict(p string) Conflict {
	c := Conflict{Path: p, Kind: ConflictType}
	if b, ok := m.base[p]; ok {
		c.Base = &Version{Hash: b.Hash, Mode: b.Mode, Type: object.TypeBlob}
		c.Ours, c.Theirs = c.Base, c.Base
	}
	if oc, ok := m.ours[p]; ok {
		c.Ours = version(oc.After)
	}
	if tc, ok := m.theirs[p]; ok {
		c.Theirs = version(tc.After)
	}
	return c
}
