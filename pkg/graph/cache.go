package graph

import (
	"fmt"

	"github.com/odvcencio/arbor/pkg/object"
)

type pairKey struct {
	left  object.Hash
	right object.Hash
}

func canonicalPair(a, b object.Hash) pairKey {
	if a <= b {
		return pairKey{left: a, right: b}
	}
	return pairKey{left: b, right: a}
}

func (g *Graph) loadMergeBases(a, b object.Hash) ([]object.Hash, bool) {
	g.mu.RLock()
	bases, ok := g.mergeBases[canonicalPair(a, b)]
	g.mu.RUnlock()
	return bases, ok
}

func (g *Graph) storeMergeBases(a, b object.Hash, bases []object.Hash) {
	g.mu.Lock()
	g.mergeBases[canonicalPair(a, b)] = bases
	g.mu.Unlock()
}

func (g *Graph) mergeBaseCacheSize() int {
	g.mu.RLock()
	n := len(g.mergeBases)
	g.mu.RUnlock()
	return n
}

func (g *Graph) loadGeneration(h object.Hash) (uint64, bool) {
	g.mu.RLock()
	gen, ok := g.generations[h]
	g.mu.RUnlock()
	return gen, ok
}

func (g *Graph) storeGeneration(h object.Hash, gen uint64) {
	g.mu.Lock()
	g.generations[h] = gen
	g.mu.Unlock()
}

// generation returns 1 for a root commit and 1 + the highest parent
// generation otherwise. The walk is an explicit post-order stack.
func (g *Graph) generation(h object.Hash) (uint64, error) {
	if gen, ok := g.loadGeneration(h); ok {
		return gen, nil
	}

	type frame struct {
		hash     object.Hash
		expanded bool
	}
	stack := []frame{{hash: h}}
	onPath := make(map[object.Hash]bool)

	for len(stack) > 0 {
		i := len(stack) - 1
		cur := stack[i].hash
		if _, ok := g.loadGeneration(cur); ok {
			stack = stack[:i]
			continue
		}

		commit, err := g.Commit(cur)
		if err != nil {
			return 0, err
		}

		if !stack[i].expanded {
			stack[i].expanded = true
			onPath[cur] = true
			for _, p := range commit.Parents {
				if _, ok := g.loadGeneration(p); ok {
					continue
				}
				if onPath[p] {
					return 0, fmt.Errorf("commit graph cycle detected at %s", p)
				}
				stack = append(stack, frame{hash: p})
			}
			continue
		}

		var maxParent uint64
		for _, p := range commit.Parents {
			pg, ok := g.loadGeneration(p)
			if !ok {
				return 0, fmt.Errorf("generation of %s unresolved", p)
			}
			if pg > maxParent {
				maxParent = pg
			}
		}
		g.storeGeneration(cur, maxParent+1)
		delete(onPath, cur)
		stack = stack[:i]
	}

	gen, _ := g.loadGeneration(h)
	return gen, nil
}
