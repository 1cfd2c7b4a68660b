package graph

import (
	"container/heap"

	"github.com/odvcencio/arbor/pkg/object"
)

// Iterator lazily walks the ancestors of a commit, start included, in
// reverse topological order: every commit is yielded before any of its
// parents. Commits are taken highest generation first, ties in ascending id
// order, and each is yielded once.
type Iterator struct {
	g       *Graph
	pending generationHeap
	visited map[object.Hash]struct{}
	started bool
	err     error
}

// Ancestors returns an iterator over start and all of its ancestors.
func (g *Graph) Ancestors(start object.Hash) *Iterator {
	return &Iterator{
		g:       g,
		pending: generationHeap{{hash: start}},
		visited: map[object.Hash]struct{}{start: {}},
	}
}

// Next returns the next ancestor. It returns false when the walk is finished
// or a commit could not be read; check Err afterwards.
func (it *Iterator) Next() (object.Hash, bool) {
	if it.err != nil {
		return "", false
	}
	if !it.started {
		it.started = true
		if !it.fillGeneration(&it.pending[0]) {
			return "", false
		}
	}
	if it.pending.Len() == 0 {
		return "", false
	}
	item := heap.Pop(&it.pending).(generationItem)

	c, err := it.g.Commit(item.hash)
	if err != nil {
		it.fail(err)
		return "", false
	}
	for _, p := range c.Parents {
		if _, seen := it.visited[p]; seen {
			continue
		}
		it.visited[p] = struct{}{}
		next := generationItem{hash: p}
		if !it.fillGeneration(&next) {
			return "", false
		}
		heap.Push(&it.pending, next)
	}
	return item.hash, true
}

func (it *Iterator) fillGeneration(item *generationItem) bool {
	gen, err := it.g.generation(item.hash)
	if err != nil {
		it.fail(err)
		return false
	}
	item.generation = gen
	return true
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.pending = nil
}

// Err returns the error that stopped the walk, if any.
func (it *Iterator) Err() error {
	return it.err
}

// ancestorSet drains an ancestor walk into a set.
func (g *Graph) ancestorSet(start object.Hash) (map[object.Hash]struct{}, error) {
	out := make(map[object.Hash]struct{})
	it := g.Ancestors(start)
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		out[h] = struct{}{}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
