package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runArbor executes the CLI against dir and returns combined output.
func runArbor(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"-C", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runArbor(t, dir, args...)
	if err != nil {
		t.Fatalf("arbor %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func writeCmdFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func initCmdRepo(t *testing.T) string {
	t.Helper()
	t.Setenv("ARBOR_AUTHOR_NAME", "tester")
	t.Setenv("ARBOR_AUTHOR_EMAIL", "tester@example.com")
	dir := t.TempDir()
	out := mustRun(t, dir, "init")
	if !strings.Contains(out, "initialized empty arbor repository") {
		t.Fatalf("init output = %q", out)
	}
	return dir
}

func TestCLICommitAndLog(t *testing.T) {
	dir := initCmdRepo(t)
	writeCmdFile(t, dir, "a.txt", "hello\n")
	mustRun(t, dir, "add", ".")

	out := mustRun(t, dir, "commit", "-m", "first")
	if !strings.HasPrefix(out, "[main ") || !strings.Contains(out, "] first") {
		t.Fatalf("commit output = %q", out)
	}

	out = mustRun(t, dir, "log", "--oneline")
	if !strings.Contains(out, "(HEAD -> main) first") {
		t.Fatalf("log output = %q", out)
	}
	out = mustRun(t, dir, "log")
	if !strings.Contains(out, "Author: tester <tester@example.com>") {
		t.Fatalf("log output = %q", out)
	}

	out = mustRun(t, dir, "cat-file", "-t", "HEAD")
	if strings.TrimSpace(out) != "commit" {
		t.Fatalf("cat-file -t HEAD = %q", out)
	}
	out = mustRun(t, dir, "verify")
	if !strings.Contains(out, "ok: verified 3 object(s)") {
		t.Fatalf("verify output = %q", out)
	}

	if _, err := runArbor(t, dir, "commit", "-m", "again"); err == nil {
		t.Fatal("commit with nothing staged succeeded")
	}
}

func TestCLIBranchCheckoutMerge(t *testing.T) {
	dir := initCmdRepo(t)
	writeCmdFile(t, dir, "a.txt", "one\ntwo\nthree\n")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "base")

	out := mustRun(t, dir, "checkout", "-b", "feature")
	if !strings.Contains(out, "switched to new branch 'feature'") {
		t.Fatalf("checkout -b output = %q", out)
	}
	writeCmdFile(t, dir, "b.txt", "feature\n")
	mustRun(t, dir, "add", "b.txt")
	mustRun(t, dir, "commit", "-m", "feature work")

	mustRun(t, dir, "checkout", "main")
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); !os.IsNotExist(err) {
		t.Fatalf("b.txt present on main: %v", err)
	}

	out = mustRun(t, dir, "branch")
	if !strings.Contains(out, "  feature ") || !strings.Contains(out, "* main ") {
		t.Fatalf("branch output = %q", out)
	}

	out = mustRun(t, dir, "merge-base", "main", "feature")
	base := strings.TrimSpace(out)
	head := strings.TrimSpace(mustRun(t, dir, "cat-file", "-t", base))
	if head != "commit" {
		t.Fatalf("merge-base %q is not a commit", base)
	}

	out = mustRun(t, dir, "merge", "feature")
	if !strings.Contains(out, "fast-forward") {
		t.Fatalf("merge output = %q", out)
	}
	out = mustRun(t, dir, "diff", "--name-status", base, "HEAD")
	if strings.TrimSpace(out) != "A\tb.txt" {
		t.Fatalf("diff --name-status = %q", out)
	}
}

func TestCLIMergeConflict(t *testing.T) {
	dir := initCmdRepo(t)
	writeCmdFile(t, dir, "a.txt", "one\ntwo\nthree\n")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "base")

	mustRun(t, dir, "checkout", "-b", "feature")
	writeCmdFile(t, dir, "a.txt", "one\nfeature\nthree\n")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "feature edit")

	mustRun(t, dir, "checkout", "main")
	writeCmdFile(t, dir, "a.txt", "one\nmain\nthree\n")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "main edit")

	out := mustRun(t, dir, "merge", "feature")
	if !strings.Contains(out, "CONFLICT (content): a.txt") {
		t.Fatalf("merge output = %q", out)
	}
	out = mustRun(t, dir, "status")
	if !strings.Contains(out, "merge in progress") {
		t.Fatalf("status output = %q", out)
	}

	writeCmdFile(t, dir, "a.txt", "one\nboth\nthree\n")
	mustRun(t, dir, "add", "a.txt")
	out = mustRun(t, dir, "commit")
	if !strings.Contains(out, "Merge feature") {
		t.Fatalf("commit output = %q", out)
	}
	out = mustRun(t, dir, "log", "-n", "1")
	if !strings.Contains(out, "Merge:") {
		t.Fatalf("log of merge commit = %q", out)
	}
}

func TestCLIRejectsSuspiciousFile(t *testing.T) {
	dir := initCmdRepo(t)
	writeCmdFile(t, dir, "run.ps1", "Write-Host hi\n")
	if out, err := runArbor(t, dir, "add", "run.ps1"); err == nil {
		t.Fatalf("add of run.ps1 succeeded: %q", out)
	}
}

func TestCLIInitBoltBlake2b(t *testing.T) {
	t.Setenv("ARBOR_AUTHOR_NAME", "tester")
	dir := t.TempDir()
	mustRun(t, dir, "init", "--hash", "blake2b", "--refs-backend", "bolt")
	if _, err := os.Stat(filepath.Join(dir, ".arbor", "refs.db")); err != nil {
		t.Fatalf("refs.db: %v", err)
	}
	writeCmdFile(t, dir, "a.txt", "x\n")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "one")
	out := mustRun(t, dir, "reflog")
	if !strings.Contains(out, "refs/heads/main commit: one") {
		t.Fatalf("reflog output = %q", out)
	}
}

func TestCLIDiffModes(t *testing.T) {
	dir := initCmdRepo(t)
	writeCmdFile(t, dir, "a.txt", "one\n")
	writeCmdFile(t, dir, "docs/b.txt", "bee\n")
	mustRun(t, dir, "add", ".")

	// Nothing committed yet: HEAD is the empty tree.
	out := mustRun(t, dir, "diff", "--staged", "--name-status")
	if out != "A\ta.txt\nA\tdocs/b.txt\n" {
		t.Fatalf("diff --staged before first commit = %q", out)
	}
	mustRun(t, dir, "commit", "-m", "base")

	writeCmdFile(t, dir, "a.txt", "two\n")
	writeCmdFile(t, dir, "docs/b.txt", "buzz\n")
	out = mustRun(t, dir, "diff")
	for _, fragment := range []string{"--- a/a.txt", "+++ b/a.txt", "-one", "+two", "+buzz"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("diff missing %q:\n%s", fragment, out)
		}
	}
	if out := mustRun(t, dir, "diff", "--staged"); out != "" {
		t.Fatalf("diff --staged with nothing staged = %q", out)
	}

	out = mustRun(t, dir, "diff", "--name-status", "--", "docs")
	if out != "M\tdocs/b.txt\n" {
		t.Fatalf("diff -- docs = %q", out)
	}
	out = mustRun(t, dir, "diff", "--name-status", "a.txt")
	if out != "M\ta.txt\n" {
		t.Fatalf("diff a.txt = %q", out)
	}

	mustRun(t, dir, "add", "a.txt")
	out = mustRun(t, dir, "diff", "--staged", "--name-status")
	if out != "M\ta.txt\n" {
		t.Fatalf("diff --staged after add = %q", out)
	}
	out = mustRun(t, dir, "diff", "--name-status")
	if out != "M\tdocs/b.txt\n" {
		t.Fatalf("diff after add = %q", out)
	}
}

func TestCLIMergeNoFastForward(t *testing.T) {
	dir := initCmdRepo(t)
	writeCmdFile(t, dir, "a.txt", "one\n")
	mustRun(t, dir, "add", "a.txt")
	mustRun(t, dir, "commit", "-m", "base")
	mustRun(t, dir, "checkout", "-b", "feature")
	writeCmdFile(t, dir, "b.txt", "feature\n")
	mustRun(t, dir, "add", "b.txt")
	mustRun(t, dir, "commit", "-m", "feature work")
	mustRun(t, dir, "checkout", "main")

	out := mustRun(t, dir, "merge", "--no-ff", "feature")
	if !strings.Contains(out, "(no fast-forward)") {
		t.Fatalf("merge --no-ff output = %q", out)
	}
	out = mustRun(t, dir, "log")
	if !strings.Contains(out, "Merge:") || !strings.Contains(out, "Merge feature") {
		t.Fatalf("log after merge --no-ff = %q", out)
	}
}
