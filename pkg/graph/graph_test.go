package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/odvcencio/arbor/pkg/object"
)

type fixture struct {
	t     *testing.T
	store *object.Store
	g     *Graph
	tree  object.Hash
	clock int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := object.NewStore(t.TempDir())
	tree, err := store.WriteTree(&object.TreeObj{})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	return &fixture{t: t, store: store, g: New(store), tree: tree}
}

func (f *fixture) commit(msg string, parents ...object.Hash) object.Hash {
	f.t.Helper()
	f.clock++
	h, err := f.g.CreateCommit(f.tree, parents, "tester <t@example.com>", msg, f.clock)
	if err != nil {
		f.t.Fatalf("CreateCommit(%q): %v", msg, err)
	}
	return h
}

func TestCreateCommitRejectsMissingParent(t *testing.T) {
	f := newFixture(t)
	missing := object.Hash(fmt.Sprintf("%064x", 42))
	_, err := f.g.CreateCommit(f.tree, []object.Hash{missing}, "a", "m", 1)
	if !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestCreateCommitRejectsNonCommitParent(t *testing.T) {
	f := newFixture(t)
	if _, err := f.g.CreateCommit(f.tree, []object.Hash{f.tree}, "a", "m", 1); err == nil {
		t.Fatal("expected error when parent is a tree")
	}
}

func TestCreateCommitRejectsMissingTree(t *testing.T) {
	f := newFixture(t)
	missing := object.Hash(fmt.Sprintf("%064x", 7))
	_, err := f.g.CreateCommit(missing, nil, "a", "m", 1)
	if !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestCreateCommitPreservesParentOrder(t *testing.T) {
	f := newFixture(t)
	p1 := f.commit("p1")
	p2 := f.commit("p2")
	m := f.commit("merge", p2, p1)
	c, err := f.store.ReadCommit(m)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 || c.Parents[0] != p2 || c.Parents[1] != p1 {
		t.Fatalf("Parents = %v, want [%s %s]", c.Parents, p2, p1)
	}
}

func drainAncestors(t *testing.T, g *Graph, start object.Hash) []object.Hash {
	t.Helper()
	it := g.Ancestors(start)
	var got []object.Hash
	for {
		h, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, h)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Ancestors: %v", err)
	}
	return got
}

// assertChildrenFirst fails if any commit in order appears after one of its
// parents.
func assertChildrenFirst(t *testing.T, f *fixture, order []object.Hash) {
	t.Helper()
	pos := make(map[object.Hash]int, len(order))
	for i, h := range order {
		pos[h] = i
	}
	for i, h := range order {
		c, err := f.store.ReadCommit(h)
		if err != nil {
			t.Fatalf("ReadCommit: %v", err)
		}
		for _, p := range c.Parents {
			if pos[p] < i {
				t.Fatalf("parent %s at %d emitted before child %s at %d", p.Short(), pos[p], h.Short(), i)
			}
		}
	}
}

func TestAncestorsEmitsEachCommitOnce(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	left := f.commit("left", root)
	right := f.commit("right", root)
	merge := f.commit("merge", left, right)

	got := drainAncestors(t, f.g, merge)
	if len(got) != 4 {
		t.Fatalf("got %d ancestors, want 4: %v", len(got), got)
	}
	if got[0] != merge {
		t.Fatalf("first ancestor = %s, want start %s", got[0], merge)
	}
	if got[len(got)-1] != root {
		t.Fatalf("root should come last, got %v", got)
	}
	assertChildrenFirst(t, f, got)
}

func TestAncestorsChildrenBeforeParents(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	a := f.commit("a", root)
	// The first parent is root itself, so a breadth-first walk would reach
	// root before a.
	m := f.commit("m", root, a)

	got := drainAncestors(t, f.g, m)
	want := []object.Hash{m, a, root}
	if len(got) != len(want) {
		t.Fatalf("Ancestors = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ancestors[%d] = %s, want %s", i, got[i].Short(), want[i].Short())
		}
	}
	assertChildrenFirst(t, f, got)
}

func TestAncestorsTopologicalOnLongSideBranch(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	side := root
	for i := 0; i < 5; i++ {
		side = f.commit(fmt.Sprintf("side%d", i), side)
	}
	short := f.commit("short", root)
	m := f.commit("m", short, side)

	got := drainAncestors(t, f.g, m)
	if len(got) != 8 {
		t.Fatalf("got %d ancestors, want 8", len(got))
	}
	assertChildrenFirst(t, f, got)
}

func TestAncestorsStopsOnMissingCommit(t *testing.T) {
	f := newFixture(t)
	it := f.g.Ancestors(object.Hash(fmt.Sprintf("%064x", 1)))
	if _, ok := it.Next(); ok {
		t.Fatal("Next succeeded for missing commit")
	}
	if !errors.Is(it.Err(), object.ErrObjectNotFound) {
		t.Fatalf("Err = %v, want ErrObjectNotFound", it.Err())
	}
}

func TestMergeBaseLinear(t *testing.T) {
	f := newFixture(t)
	a := f.commit("a")
	b := f.commit("b", a)
	c := f.commit("c", b)

	base, found, err := f.g.MergeBase(b, c)
	if err != nil {
		t.Fatalf("MergeBase: %v", err)
	}
	if !found || base != b {
		t.Fatalf("MergeBase(b, c) = %s/%v, want b", base, found)
	}

	base, found, err = f.g.MergeBase(c, c)
	if err != nil {
		t.Fatalf("MergeBase self: %v", err)
	}
	if !found || base != c {
		t.Fatalf("MergeBase(c, c) = %s/%v, want c", base, found)
	}
}

func TestMergeBaseDiamond(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	fork := f.commit("fork", root)
	ours := f.commit("ours", fork)
	theirs := f.commit("theirs", fork)

	base, found, err := f.g.MergeBase(ours, theirs)
	if err != nil {
		t.Fatalf("MergeBase: %v", err)
	}
	if !found || base != fork {
		t.Fatalf("MergeBase = %s/%v, want fork %s", base, found, fork)
	}

	// Symmetric.
	base2, _, err := f.g.MergeBase(theirs, ours)
	if err != nil {
		t.Fatalf("MergeBase reversed: %v", err)
	}
	if base2 != base {
		t.Fatalf("MergeBase not symmetric: %s vs %s", base, base2)
	}
}

func TestMergeBaseDisjointHistories(t *testing.T) {
	f := newFixture(t)
	a := f.commit("island a")
	b := f.commit("island b")
	_, found, err := f.g.MergeBase(a, b)
	if err != nil {
		t.Fatalf("MergeBase: %v", err)
	}
	if found {
		t.Fatal("expected no merge base for disjoint histories")
	}
}

func TestMergeBaseCrissCrossPicksSmallestID(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	x := f.commit("x", root)
	y := f.commit("y", root)
	// Each side merges the other's tip, producing two best common ancestors.
	m1 := f.commit("m1", x, y)
	m2 := f.commit("m2", y, x)
	tip1 := f.commit("tip1", m1)
	tip2 := f.commit("tip2", m2)

	bases, err := f.g.MergeBases(tip1, tip2)
	if err != nil {
		t.Fatalf("MergeBases: %v", err)
	}
	want := []object.Hash{x, y}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(bases) != 2 || bases[0] != want[0] || bases[1] != want[1] {
		t.Fatalf("MergeBases = %v, want %v", bases, want)
	}

	for i := 0; i < 3; i++ {
		base, found, err := New(f.store).MergeBase(tip2, tip1)
		if err != nil {
			t.Fatalf("MergeBase: %v", err)
		}
		if !found || base != want[0] {
			t.Fatalf("MergeBase = %s, want smallest id %s", base, want[0])
		}
	}
}

func TestMergeBaseExcludesDominatedAncestors(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	mid := f.commit("mid", root)
	a := f.commit("a", mid)
	b := f.commit("b", mid, root)

	bases, err := f.g.MergeBases(a, b)
	if err != nil {
		t.Fatalf("MergeBases: %v", err)
	}
	if len(bases) != 1 || bases[0] != mid {
		t.Fatalf("MergeBases = %v, want [mid]", bases)
	}
}

func TestMergeBaseMemoizedAndConcurrent(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	a := f.commit("a", root)
	b := f.commit("b", root)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			base, found, err := f.g.MergeBase(a, b)
			if err != nil {
				errs <- err
				return
			}
			if !found || base != root {
				errs <- fmt.Errorf("MergeBase = %s/%v, want root", base, found)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if n := f.g.mergeBaseCacheSize(); n != 1 {
		t.Fatalf("merge base cache size = %d, want 1 for a single unordered pair", n)
	}
}

func TestGenerationNumbers(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	a := f.commit("a", root)
	b := f.commit("b", a)
	m := f.commit("m", b, root)

	for h, want := range map[object.Hash]uint64{root: 1, a: 2, b: 3, m: 4} {
		got, err := f.g.generation(h)
		if err != nil {
			t.Fatalf("generation: %v", err)
		}
		if got != want {
			t.Errorf("generation(%s) = %d, want %d", h.Short(), got, want)
		}
	}
}

func TestIsAncestor(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	a := f.commit("a", root)
	b := f.commit("b", root)
	m := f.commit("m", a, b)

	cases := []struct {
		anc, desc object.Hash
		want      bool
	}{
		{root, m, true},
		{b, m, true},
		{m, m, true},
		{a, b, false},
		{m, root, false},
	}
	for _, tc := range cases {
		got, err := f.g.IsAncestor(tc.anc, tc.desc)
		if err != nil {
			t.Fatalf("IsAncestor: %v", err)
		}
		if got != tc.want {
			t.Errorf("IsAncestor(%s, %s) = %v, want %v", tc.anc.Short(), tc.desc.Short(), got, tc.want)
		}
	}
}

func TestLogFollowsFirstParent(t *testing.T) {
	f := newFixture(t)
	root := f.commit("root")
	side := f.commit("side", root)
	main1 := f.commit("main1", root)
	merge := f.commit("merge\n\nbody", main1, side)

	entries, err := f.g.Log(merge, 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	want := []object.Hash{merge, main1, root}
	if len(entries) != len(want) {
		t.Fatalf("Log returned %d entries, want %d", len(entries), len(want))
	}
	for i, h := range want {
		if entries[i].Hash != h {
			t.Errorf("entries[%d] = %s, want %s", i, entries[i].Hash.Short(), h.Short())
		}
	}
	if entries[0].Subject() != "merge" {
		t.Errorf("Subject = %q, want %q", entries[0].Subject(), "merge")
	}

	limited, err := f.g.Log(merge, 2)
	if err != nil {
		t.Fatalf("Log limit: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("Log limit 2 returned %d", len(limited))
	}
}
