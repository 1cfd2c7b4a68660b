package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/odvcencio/arbor/pkg/object"
)

func blobHash(s string) object.Hash {
	return object.HashObject(object.TypeBlob, []byte(s))
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	ix, err := Read(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ix.Len() != 0 {
		t.Fatalf("Len = %d, want 0", ix.Len())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")
	ix := New()
	for _, e := range []Entry{
		{Path: "src/main.go", Hash: blobHash("main")},
		{Path: "README", Hash: blobHash("readme"), Mode: object.TreeModeFile},
		{Path: "bin/run", Hash: blobHash("run"), Mode: object.TreeModeExecutable},
	} {
		if err := ix.Set(e); err != nil {
			t.Fatalf("Set(%q): %v", e.Path, err)
		}
	}
	if err := ix.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !Equal(ix, got) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got.Entries(), ix.Entries())
	}
	e, ok := got.Get("src/main.go")
	if !ok || e.Mode != object.TreeModeFile {
		t.Fatalf("default mode not applied: %+v", e)
	}

	want := []string{"README", "bin/run", "src/main.go"}
	paths := got.Paths()
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Fatalf("Paths = %v, want %v", paths, want)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	ix := New()
	if err := ix.Set(Entry{Path: "a", Hash: blobHash("a")}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := ix.Write(filepath.Join(dir, "index")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "index" {
		t.Fatalf("unexpected files after write: %v", entries)
	}
}

func TestSetRejectsInvalidPaths(t *testing.T) {
	ix := New()
	for _, p := range []string{"", "/abs", "a//b", "a/../b", "./a", "a/"} {
		if err := ix.Set(Entry{Path: p, Hash: blobHash("x")}); err == nil {
			t.Errorf("Set(%q) succeeded, want error", p)
		}
	}
	if err := ix.Set(Entry{Path: "ok", Hash: "nothex"}); err == nil {
		t.Error("Set with invalid hash succeeded")
	}
	if err := ix.Set(Entry{Path: "ok", Hash: blobHash("x"), Mode: "120000"}); err == nil {
		t.Error("Set with symlink mode succeeded")
	}
}

func TestRemove(t *testing.T) {
	ix := New()
	if err := ix.Set(Entry{Path: "a.txt", Hash: blobHash("a")}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !ix.Remove("a.txt") {
		t.Fatal("Remove returned false for staged path")
	}
	if ix.Remove("a.txt") {
		t.Fatal("Remove returned true for already removed path")
	}
	if ix.Len() != 0 {
		t.Fatalf("Len = %d, want 0", ix.Len())
	}
}

func TestEqualIgnoresMetadata(t *testing.T) {
	a, err := FromEntries([]Entry{{Path: "f", Hash: blobHash("f"), ModTime: 1, Size: 1}})
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	b, err := FromEntries([]Entry{{Path: "f", Hash: blobHash("f"), ModTime: 99, Size: 1}})
	if err != nil {
		t.Fatalf("FromEntries: %v", err)
	}
	if !Equal(a, b) {
		t.Fatal("indexes differing only in mtime should be equal")
	}
	if err := b.Set(Entry{Path: "f", Hash: blobHash("f"), Mode: object.TreeModeExecutable}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if Equal(a, b) {
		t.Fatal("mode change should make indexes differ")
	}
}
