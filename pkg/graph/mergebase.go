package graph

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/odvcencio/arbor/pkg/object"
)

// MergeBase returns the best common ancestor of a and b. A best common
// ancestor is a common ancestor that is not a proper ancestor of any other
// common ancestor. When several exist (criss-cross histories) the smallest id
// is returned, so repeated calls always agree. found is false when the two
// histories share no commit.
func (g *Graph) MergeBase(a, b object.Hash) (base object.Hash, found bool, err error) {
	bases, err := g.MergeBases(a, b)
	if err != nil {
		return "", false, err
	}
	if len(bases) == 0 {
		return "", false, nil
	}
	return bases[0], true, nil
}

// MergeBases returns every best common ancestor of a and b in ascending id
// order. Results are memoized per unordered pair.
func (g *Graph) MergeBases(a, b object.Hash) ([]object.Hash, error) {
	if cached, ok := g.loadMergeBases(a, b); ok {
		return append([]object.Hash(nil), cached...), nil
	}
	if a == b {
		if _, err := g.Commit(a); err != nil {
			return nil, fmt.Errorf("merge base: %w", err)
		}
		g.storeMergeBases(a, b, []object.Hash{a})
		return []object.Hash{a}, nil
	}

	ancA, err := g.ancestorSet(a)
	if err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}
	ancB, err := g.ancestorSet(b)
	if err != nil {
		return nil, fmt.Errorf("merge base: %w", err)
	}

	// Visit common ancestors from the highest generation down. A commit is
	// always visited before its ancestors, so by the time a commit is popped
	// it is already marked if any other common ancestor descends from it.
	var queue generationHeap
	for h := range ancA {
		if _, ok := ancB[h]; !ok {
			continue
		}
		gen, err := g.generation(h)
		if err != nil {
			return nil, fmt.Errorf("merge base: %w", err)
		}
		queue = append(queue, generationItem{hash: h, generation: gen})
	}
	heap.Init(&queue)

	dominated := make(map[object.Hash]struct{})
	var bases []object.Hash
	for queue.Len() > 0 {
		item := heap.Pop(&queue).(generationItem)
		if _, ok := dominated[item.hash]; ok {
			continue
		}
		bases = append(bases, item.hash)
		if err := g.markAncestors(item.hash, dominated); err != nil {
			return nil, fmt.Errorf("merge base: %w", err)
		}
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })

	g.storeMergeBases(a, b, bases)
	return append([]object.Hash(nil), bases...), nil
}

// markAncestors adds every proper ancestor of h to marked. Walks stop at
// commits that are already marked, since their ancestors were marked with
// them.
func (g *Graph) markAncestors(h object.Hash, marked map[object.Hash]struct{}) error {
	c, err := g.Commit(h)
	if err != nil {
		return err
	}
	stack := append([]object.Hash(nil), c.Parents...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := marked[cur]; ok {
			continue
		}
		marked[cur] = struct{}{}
		pc, err := g.Commit(cur)
		if err != nil {
			return err
		}
		stack = append(stack, pc.Parents...)
	}
	return nil
}

// IsAncestor reports whether ancestor is reachable from descendant by
// following parent links. A commit is its own ancestor. Generation numbers
// prune branches that are already older than the target.
func (g *Graph) IsAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	ancestorGen, err := g.generation(ancestor)
	if err != nil {
		return false, fmt.Errorf("is ancestor: %w", err)
	}
	descendantGen, err := g.generation(descendant)
	if err != nil {
		return false, fmt.Errorf("is ancestor: %w", err)
	}
	if ancestorGen >= descendantGen {
		return false, nil
	}

	visited := map[object.Hash]struct{}{descendant: {}}
	queue := []object.Hash{descendant}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == ancestor {
			return true, nil
		}

		commit, err := g.Commit(cur)
		if err != nil {
			return false, fmt.Errorf("is ancestor: %w", err)
		}
		for _, p := range commit.Parents {
			if _, seen := visited[p]; seen {
				continue
			}
			visited[p] = struct{}{}
			pg, err := g.generation(p)
			if err != nil {
				return false, fmt.Errorf("is ancestor: %w", err)
			}
			if pg < ancestorGen {
				continue
			}
			queue = append(queue, p)
		}
	}
	return false, nil
}
