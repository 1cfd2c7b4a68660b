package worktree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/odvcencio/arbor/pkg/index"
	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/tree"
)

func TestValidatePath(t *testing.T) {
	ok := []string{"a.txt", "dir/b.go", "./c", "dir/../d", "Makefile", "notes.shx"}
	for _, p := range ok {
		if err := ValidatePath(p); err != nil {
			t.Errorf("ValidatePath(%q) = %v, want nil", p, err)
		}
	}

	outside := []string{"", "/etc/passwd", "..", "../x", "a/../../x", ".", ".arbor/HEAD", ".arbor"}
	for _, p := range outside {
		if err := ValidatePath(p); !errors.Is(err, ErrPathOutsideRepository) {
			t.Errorf("ValidatePath(%q) = %v, want ErrPathOutsideRepository", p, err)
		}
	}

	suspicious := []string{"setup.exe", "lib/x.DLL", "run.sh", "a.Bat", "b.cmd", "c.ps1", "libz.so"}
	for _, p := range suspicious {
		if err := ValidatePath(p); !errors.Is(err, ErrSuspiciousFile) {
			t.Errorf("ValidatePath(%q) = %v, want ErrSuspiciousFile", p, err)
		}
		if Valid(p) {
			t.Errorf("Valid(%q) = true", p)
		}
	}

	allow := Policy{AllowExecutables: true}
	if err := allow.Validate("run.sh"); err != nil {
		t.Fatalf("AllowExecutables policy rejected run.sh: %v", err)
	}
	if err := allow.Validate("../run.sh"); !errors.Is(err, ErrPathOutsideRepository) {
		t.Fatalf("AllowExecutables must still reject escapes, got %v", err)
	}
}

func TestRel(t *testing.T) {
	root := t.TempDir()
	got, err := Rel(root, filepath.Join(root, "sub"), "f.txt")
	if err != nil || got != "sub/f.txt" {
		t.Fatalf("Rel = %q, %v", got, err)
	}
	if _, err := Rel(root, root, filepath.Join(filepath.Dir(root), "elsewhere")); !errors.Is(err, ErrPathOutsideRepository) {
		t.Fatalf("Rel outside root = %v", err)
	}
}

func TestIgnore(t *testing.T) {
	ig := NewIgnore(MetaDir+"/", "*.log", "build/", "docs/**/*.tmp", "!keep.log")

	cases := map[string]bool{
		".arbor/HEAD":     true,
		"debug.log":       true,
		"keep.log":        false,
		"src/debug.log":   true,
		"build/out.o":     true,
		"src/build/out.o": true,
		"builder.go":      false,
		"docs/a/b/x.tmp":  true,
		"docs/x.tmp":      true,
		"other/x.tmp":     false,
		"src/main.go":     false,
	}
	for p, want := range cases {
		if got := ig.Match(p); got != want {
			t.Errorf("Match(%q) = %v, want %v", p, got, want)
		}
	}
	if !ig.MatchDir("build") || ig.MatchDir("src") {
		t.Fatal("MatchDir misclassified directories")
	}
}

func TestLoadIgnoreReadsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte("# comment\n\n*.bak\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ig, err := LoadIgnore(dir)
	if err != nil {
		t.Fatalf("LoadIgnore: %v", err)
	}
	if !ig.Match("x.bak") || ig.Match("x.go") || !ig.Match(".arbor/index") {
		t.Fatal("patterns from ignore file not applied")
	}
}

func writeTree(t *testing.T, s *object.Store, files map[string]string, modes map[string]string) object.Hash {
	t.Helper()
	var entries []index.Entry
	for p, c := range files {
		h, err := s.WriteBlob(&object.Blob{Data: []byte(c)})
		if err != nil {
			t.Fatalf("WriteBlob: %v", err)
		}
		entries = append(entries, index.Entry{Path: p, Hash: h, Mode: modes[p]})
	}
	root, err := tree.Build(s, entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return root
}

func TestMaterializeAndScan(t *testing.T) {
	s := object.NewStore(t.TempDir())
	root := writeTree(t, s,
		map[string]string{"a.txt": "A", "bin/run": "#!/bin/sh\n", "deep/x/y.txt": "Y"},
		map[string]string{"bin/run": object.TreeModeExecutable},
	)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "untracked.txt"), []byte("u"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, MetaDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaDir, "HEAD"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Materialize(s, root, dir); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "deep", "x", "y.txt"))
	if err != nil || string(data) != "Y" {
		t.Fatalf("deep/x/y.txt = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "untracked.txt")); err != nil {
		t.Fatalf("Materialize removed an untracked file: %v", err)
	}

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var paths []string
	modes := map[string]string{}
	for _, f := range files {
		paths = append(paths, f.Path)
		modes[f.Path] = f.Mode
	}
	want := []string{"a.txt", "bin/run", "deep/x/y.txt", "untracked.txt"}
	if len(paths) != len(want) {
		t.Fatalf("Scan paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("Scan paths = %v, want %v", paths, want)
		}
	}
	if modes["bin/run"] != object.TreeModeExecutable || modes["a.txt"] != object.TreeModeFile {
		t.Fatalf("Scan modes = %v", modes)
	}
}

func TestMaterializeResetsPermissions(t *testing.T) {
	s := object.NewStore(t.TempDir())
	root := writeTree(t, s, map[string]string{"tool": "x"}, nil)

	dir := t.TempDir()
	p := filepath.Join(dir, "tool")
	if err := os.WriteFile(p, []byte("old"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Materialize(s, root, dir); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0o111 != 0 {
		t.Fatalf("tool should no longer be executable, mode %v", info.Mode())
	}
}

func TestCleanRemovesEmptyParents(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{filepath.Join(nested, "f.txt"), filepath.Join(dir, "a", "keep.txt")} {
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := Clean(dir, []string{"a/b/f.txt", "missing.txt"}); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(nested); !os.IsNotExist(err) {
		t.Fatalf("empty dir a/b should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "keep.txt")); err != nil {
		t.Fatalf("a/keep.txt should survive: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("root must never be removed: %v", err)
	}

	if err := Clean(dir, []string{"../escape"}); !errors.Is(err, ErrPathOutsideRepository) {
		t.Fatalf("Clean outside root = %v", err)
	}
}
