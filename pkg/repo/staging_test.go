package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/arbor/pkg/worktree"
)

func TestAddDirectoryHonorsIgnore(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, worktree.IgnoreFile, "*.log\nbuild/\n")
	writeFile(t, r, "src/main.go", "package main\n")
	writeFile(t, r, "debug.log", "noise")
	writeFile(t, r, "build/out.bin", "bin")

	if err := r.Add(context.Background(), []string{"."}); err != nil {
		t.Fatalf("Add(.): %v", err)
	}
	ix, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	got := ix.Paths()
	want := []string{worktree.IgnoreFile, "src/main.go"}
	if len(got) != len(want) {
		t.Fatalf("index paths = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddRejectsSuspiciousFile(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r, "ok.txt", "fine")
	writeFile(t, r, "tools/run.SH", "#!/bin/sh\n")

	err := r.Add(context.Background(), []string{"ok.txt", "tools/run.SH"})
	if !errors.Is(err, worktree.ErrSuspiciousFile) {
		t.Fatalf("Add: %v, want ErrSuspiciousFile", err)
	}
	ix, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if ix.Len() != 0 {
		t.Fatalf("rejected Add left %d staged entries", ix.Len())
	}
}

func TestAddAllowsExecutablesWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.AllowExecutables = true
	r := newTestRepo(t, WithConfig(cfg))
	writeFile(t, r, "build.sh", "#!/bin/sh\n")
	if err := r.Add(context.Background(), []string{"build.sh"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestAddRejectsPathOutsideRepository(t *testing.T) {
	r := newTestRepo(t)
	for _, p := range []string{"../escape.txt", ".arbor/HEAD"} {
		if err := r.Add(context.Background(), []string{p}); !errors.Is(err, worktree.ErrPathOutsideRepository) {
			t.Errorf("Add(%q): %v, want ErrPathOutsideRepository", p, err)
		}
	}
}

func TestAddStagesDeletion(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	commitFiles(t, r, "one", map[string]string{"a.txt": "a", "b.txt": "b"})

	if err := os.Remove(filepath.Join(r.RootDir, "b.txt")); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(ctx, []string{"b.txt"}); err != nil {
		t.Fatalf("Add(deleted): %v", err)
	}
	ix, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if _, ok := ix.Get("b.txt"); ok {
		t.Fatal("deleted file still staged")
	}
	if err := r.Add(ctx, []string{"missing.txt"}); err == nil {
		t.Fatal("Add of unknown path succeeded")
	}
}

func TestRemoveCachedKeepsFile(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	commitFiles(t, r, "one", map[string]string{"a.txt": "a", "b.txt": "b"})

	if err := r.Remove(ctx, []string{"a.txt"}, true); err != nil {
		t.Fatalf("Remove(cached): %v", err)
	}
	if !fileExists(r, "a.txt") {
		t.Error("cached remove deleted the file")
	}
	if err := r.Remove(ctx, []string{"b.txt"}, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if fileExists(r, "b.txt") {
		t.Error("remove kept the file")
	}
	if err := r.Remove(ctx, []string{"b.txt"}, false); err == nil {
		t.Fatal("removing an untracked path succeeded")
	}
}

func TestStatusListing(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	commitFiles(t, r, "one", map[string]string{"same.txt": "s", "mod.txt": "m", "gone.txt": "g"})

	writeFile(t, r, "mod.txt", "changed")
	writeFile(t, r, "staged.txt", "new")
	writeFile(t, r, "untracked.txt", "u")
	if err := r.Add(ctx, []string{"staged.txt"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := os.Remove(filepath.Join(r.RootDir, "gone.txt")); err != nil {
		t.Fatal(err)
	}

	entries, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := []StatusEntry{
		{Path: "gone.txt", WorkStatus: StatusDeleted},
		{Path: "mod.txt", WorkStatus: StatusModified},
		{Path: "staged.txt", IndexStatus: StatusAdded},
		{Path: "untracked.txt", WorkStatus: StatusUntracked},
	}
	if len(entries) != len(want) {
		t.Fatalf("Status = %+v, want %+v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}
