// Package graph creates commits and answers ancestry questions over the
// commit DAG: ancestor walks, first-parent logs, ancestor tests and merge
// bases.
package graph

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/odvcencio/arbor/pkg/object"
)

// Store is the subset of the object store the graph needs.
type Store interface {
	Has(object.Hash) bool
	ReadCommit(object.Hash) (*object.CommitObj, error)
	WriteCommit(*object.CommitObj) (object.Hash, error)
}

// Graph is safe for concurrent use. Commit loads, generation numbers and
// merge-base results are memoized for the lifetime of the Graph; objects are
// immutable so the caches never go stale.
type Graph struct {
	store Store
	loads singleflight.Group

	mu          sync.RWMutex
	commits     map[object.Hash]*object.CommitObj
	generations map[object.Hash]uint64
	mergeBases  map[pairKey][]object.Hash
}

// New returns a Graph reading commits from store.
func New(store Store) *Graph {
	return &Graph{
		store:       store,
		commits:     make(map[object.Hash]*object.CommitObj),
		generations: make(map[object.Hash]uint64),
		mergeBases:  make(map[pairKey][]object.Hash),
	}
}

// CreateCommit writes a commit after checking that the tree exists and every
// parent resolves to a commit. Parent order is preserved.
func (g *Graph) CreateCommit(treeHash object.Hash, parents []object.Hash, author, message string, timestamp int64) (object.Hash, error) {
	if !g.store.Has(treeHash) {
		return "", fmt.Errorf("create commit: tree %s: %w", treeHash, object.ErrObjectNotFound)
	}
	for _, p := range parents {
		if _, err := g.Commit(p); err != nil {
			return "", fmt.Errorf("create commit: parent: %w", err)
		}
	}

	c := &object.CommitObj{
		TreeHash:  treeHash,
		Parents:   append([]object.Hash(nil), parents...),
		Author:    author,
		Timestamp: timestamp,
		Message:   message,
	}
	h, err := g.store.WriteCommit(c)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return h, nil
}

// Commit loads a commit through the cache. Concurrent loads of the same id
// share one store read.
func (g *Graph) Commit(h object.Hash) (*object.CommitObj, error) {
	g.mu.RLock()
	cached, ok := g.commits[h]
	g.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := g.loads.Do(string(h), func() (any, error) {
		c, err := g.store.ReadCommit(h)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		if existing, exists := g.commits[h]; exists {
			c = existing
		} else {
			g.commits[h] = c
		}
		g.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", h, err)
	}
	return v.(*object.CommitObj), nil
}

// Entry is one commit in a log listing.
type Entry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Subject returns the first line of the commit message.
func (e Entry) Subject() string {
	subject, _, _ := strings.Cut(e.Commit.Message, "\n")
	return subject
}

// Log follows first-parent links from start, returning up to limit commits
// newest first. A limit <= 0 means no limit.
func (g *Graph) Log(start object.Hash, limit int) ([]Entry, error) {
	var out []Entry
	current := start
	for current != "" && (limit <= 0 || len(out) < limit) {
		c, err := g.Commit(current)
		if err != nil {
			return nil, fmt.Errorf("log: %w", err)
		}
		out = append(out, Entry{Hash: current, Commit: c})
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}
	return out, nil
}
