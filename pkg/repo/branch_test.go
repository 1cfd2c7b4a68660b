package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/refs"
	"github.com/odvcencio/arbor/pkg/tree"
)

func TestCreateListDeleteBranch(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.CreateBranch(ctx, "feature", ""); err == nil {
		t.Fatal("CreateBranch on unborn HEAD succeeded")
	}
	h := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})

	if err := r.CreateBranch(ctx, "feature", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch(ctx, "feature", ""); !errors.Is(err, ErrBranchExists) {
		t.Fatalf("duplicate CreateBranch: %v, want ErrBranchExists", err)
	}
	if err := r.CreateBranch(ctx, "bad..name", ""); err == nil {
		t.Fatal("CreateBranch accepted an invalid name")
	}

	branches, err := r.ListBranches(ctx)
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	want := []Branch{{Name: "feature", Commit: h}, {Name: "main", Commit: h, Current: true}}
	if len(branches) != len(want) {
		t.Fatalf("ListBranches = %+v", branches)
	}
	for i := range want {
		if branches[i] != want[i] {
			t.Errorf("branch %d = %+v, want %+v", i, branches[i], want[i])
		}
	}

	if err := r.DeleteBranch(ctx, "main"); err == nil {
		t.Fatal("deleted the current branch")
	}
	if err := r.DeleteBranch(ctx, "feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if err := r.DeleteBranch(ctx, "feature"); !errors.Is(err, ErrBranchNotFound) {
		t.Fatalf("second DeleteBranch: %v, want ErrBranchNotFound", err)
	}
}

func TestCheckoutSwitchesFilesAndIndex(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	commitFiles(t, r, "base", map[string]string{"a.txt": "base\n", "keep.txt": "k\n"})

	if err := r.SwitchBranch(ctx, "feature"); err != nil {
		t.Fatalf("SwitchBranch: %v", err)
	}
	if err := r.Remove(ctx, []string{"keep.txt"}, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	feature := commitFiles(t, r, "feature", map[string]string{"a.txt": "feature\n", "dir/new.txt": "new\n"})

	if err := r.Checkout(ctx, "main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	if got := readFile(t, r, "a.txt"); got != "base\n" {
		t.Errorf("a.txt = %q, want base", got)
	}
	if fileExists(r, "dir/new.txt") || fileExists(r, "dir") {
		t.Error("dir/new.txt survived checkout of main")
	}
	if got := readFile(t, r, "keep.txt"); got != "k\n" {
		t.Errorf("keep.txt = %q", got)
	}
	assertIndexMatchesHead(t, r)

	if err := r.Checkout(ctx, "feature"); err != nil {
		t.Fatalf("Checkout(feature): %v", err)
	}
	if got := headCommit(t, r); got != feature {
		t.Fatalf("HEAD = %s, want %s", got, feature)
	}
	if fileExists(r, "keep.txt") {
		t.Error("keep.txt present on feature")
	}
	if got := readFile(t, r, "dir/new.txt"); got != "new\n" {
		t.Errorf("dir/new.txt = %q", got)
	}
	assertIndexMatchesHead(t, r)
}

func TestCheckoutDetachedHead(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	first := commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	commitFiles(t, r, "two", map[string]string{"a.txt": "2"})

	if err := r.Checkout(ctx, string(first)); err != nil {
		t.Fatalf("Checkout(id): %v", err)
	}
	branch, err := r.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "" {
		t.Fatalf("CurrentBranch = %q, want detached", branch)
	}
	if got := readFile(t, r, "a.txt"); got != "1" {
		t.Fatalf("a.txt = %q, want 1", got)
	}

	next := commitFiles(t, r, "detached work", map[string]string{"b.txt": "b"})
	if got := headCommit(t, r); got != next {
		t.Fatalf("detached HEAD = %s, want %s", got, next)
	}
	mainTip, err := r.ResolveRevision(ctx, "main")
	if err != nil {
		t.Fatalf("ResolveRevision(main): %v", err)
	}
	if mainTip == next {
		t.Fatal("commit on detached HEAD moved main")
	}
}

func TestCheckoutRefusesDirtyWorktree(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	commitFiles(t, r, "one", map[string]string{"a.txt": "1"})
	if err := r.CreateBranch(ctx, "other", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	writeFile(t, r, "a.txt", "dirty")
	if err := r.Checkout(ctx, "other"); !errors.Is(err, ErrDirtyWorktree) {
		t.Fatalf("Checkout with dirty file: %v, want ErrDirtyWorktree", err)
	}

	writeFile(t, r, "a.txt", "1")
	writeFile(t, r, "untracked.txt", "u")
	if err := r.Checkout(ctx, "other"); err != nil {
		t.Fatalf("Checkout with only untracked files: %v", err)
	}
	if !fileExists(r, "untracked.txt") {
		t.Error("checkout removed an untracked file")
	}
}

func assertIndexMatchesHead(t *testing.T, r *Repo) {
	t.Helper()
	ix, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	c, err := r.Graph.Commit(headCommit(t, r))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	files, err := tree.Flatten(r.Store, c.TreeHash)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	want, err := index.FromEntries(files)
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	got := ix.Entries()
	if len(got) != want.Len() {
		t.Fatalf("index has %d entries, tree has %d", len(got), want.Len())
	}
	for _, e := range got {
		w, ok := want.Get(e.Path)
		if !ok || w.Hash != e.Hash || w.Mode != e.Mode {
			t.Errorf("index entry %s = %s %s, tree has %+v", e.Path, e.Hash, e.Mode, w)
		}
	}
}

func TestCheckoutLostHeadRaceRestoresWorktree(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	commitFiles(t, r, "base", map[string]string{"a.txt": "a\n"})
	if err := r.SwitchBranch(ctx, "feature"); err != nil {
		t.Fatalf("SwitchBranch: %v", err)
	}
	commitFiles(t, r, "feature", map[string]string{"a.txt": "a feature\n", "f.txt": "f\n"})
	if err := r.Checkout(ctx, "main"); err != nil {
		t.Fatalf("Checkout(main): %v", err)
	}
	r.Refs = &racingRefs{Store: r.Refs, lose: true}

	err := r.Checkout(ctx, "feature")
	if !errors.Is(err, refs.ErrRefUpdateConflict) {
		t.Fatalf("Checkout: %v, want ErrRefUpdateConflict", err)
	}
	head, err := r.Refs.ReadHead(ctx)
	if err != nil {
		t.Fatalf("ReadHead: %v", err)
	}
	if head.Symbolic != "refs/heads/main" {
		t.Fatalf("HEAD = %+v, want main", head)
	}
	if got := readFile(t, r, "a.txt"); got != "a\n" {
		t.Errorf("a.txt = %q", got)
	}
	if fileExists(r, "f.txt") {
		t.Error("f.txt left in worktree")
	}
	assertCleanAtHead(t, r)
}
