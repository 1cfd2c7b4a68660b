package object

import (
	"bytes"
	"strings"
	"testing"
)

func testHash(b byte) Hash {
	return Hash(strings.Repeat(string("0123456789abcdef"[b%16]), 64))
}

func TestMarshalUnmarshalTree(t *testing.T) {
	orig := &TreeObj{
		Entries: []TreeEntry{
			{Name: "b.txt", Type: TypeBlob, Mode: TreeModeFile, Hash: testHash(1)},
			{Name: "a dir", Type: TypeTree, Hash: testHash(2)},
			{Name: "run.sh", Type: TypeBlob, Mode: TreeModeExecutable, Hash: testHash(3)},
		},
	}
	data, err := MarshalTree(orig)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Fatalf("Entries count: got %d, want 3", len(got.Entries))
	}
	wantNames := []string{"a dir", "b.txt", "run.sh"}
	for i, name := range wantNames {
		if got.Entries[i].Name != name {
			t.Errorf("Entry[%d].Name: got %q, want %q", i, got.Entries[i].Name, name)
		}
	}
	if got.Entries[0].Mode != TreeModeDir || !got.Entries[0].IsTree() {
		t.Errorf("directory entry decoded as %+v", got.Entries[0])
	}
	if got.Entries[2].Mode != TreeModeExecutable {
		t.Errorf("executable mode lost: %+v", got.Entries[2])
	}
}

func TestMarshalTreeOrderIndependent(t *testing.T) {
	a := &TreeObj{Entries: []TreeEntry{
		{Name: "x", Type: TypeBlob, Hash: testHash(1)},
		{Name: "y", Type: TypeBlob, Hash: testHash(2)},
	}}
	b := &TreeObj{Entries: []TreeEntry{a.Entries[1], a.Entries[0]}}

	da, err := MarshalTree(a)
	if err != nil {
		t.Fatalf("MarshalTree a: %v", err)
	}
	db, err := MarshalTree(b)
	if err != nil {
		t.Fatalf("MarshalTree b: %v", err)
	}
	if !bytes.Equal(da, db) {
		t.Fatalf("tree encoding depends on entry order:\n%s\nvs\n%s", da, db)
	}
}

func TestMarshalEmptyTree(t *testing.T) {
	data, err := MarshalTree(&TreeObj{})
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("empty tree encoding = %q, want empty", data)
	}
	got, err := UnmarshalTree(data)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(got.Entries))
	}
}

func TestMarshalTreeRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name  string
		entry []TreeEntry
	}{
		{"empty name", []TreeEntry{{Name: "", Type: TypeBlob, Hash: testHash(1)}}},
		{"slash", []TreeEntry{{Name: "a/b", Type: TypeBlob, Hash: testHash(1)}}},
		{"dotdot", []TreeEntry{{Name: "..", Type: TypeBlob, Hash: testHash(1)}}},
		{"newline", []TreeEntry{{Name: "a\nb", Type: TypeBlob, Hash: testHash(1)}}},
		{"bad hash", []TreeEntry{{Name: "a", Type: TypeBlob, Hash: "xyz"}}},
		{"bad mode", []TreeEntry{{Name: "a", Type: TypeBlob, Mode: "120000", Hash: testHash(1)}}},
		{"commit entry", []TreeEntry{{Name: "a", Type: TypeCommit, Hash: testHash(1)}}},
		{"duplicate", []TreeEntry{
			{Name: "a", Type: TypeBlob, Hash: testHash(1)},
			{Name: "a", Type: TypeTree, Hash: testHash(2)},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MarshalTree(&TreeObj{Entries: tc.entry}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUnmarshalTreeRejectsMalformed(t *testing.T) {
	bad := []string{
		"100644 blob " + string(testHash(1)) + "\n",
		"40000 blob " + string(testHash(1)) + " a\n",
		"100644 blob nothex a\n",
	}
	for _, in := range bad {
		if _, err := UnmarshalTree([]byte(in)); err == nil {
			t.Errorf("UnmarshalTree(%q) succeeded, want error", in)
		}
	}
}

func TestMarshalUnmarshalCommit(t *testing.T) {
	orig := &CommitObj{
		TreeHash:  testHash(1),
		Parents:   []Hash{testHash(2), testHash(3)},
		Author:    "Alice <alice@example.com>",
		Timestamp: 1700000000,
		Message:   "Initial commit\n\nWith a body.\n",
	}
	data, err := MarshalCommit(orig)
	if err != nil {
		t.Fatalf("MarshalCommit: %v", err)
	}
	got, err := UnmarshalCommit(data)
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if got.TreeHash != orig.TreeHash {
		t.Errorf("TreeHash: got %q, want %q", got.TreeHash, orig.TreeHash)
	}
	if len(got.Parents) != 2 || got.Parents[0] != orig.Parents[0] || got.Parents[1] != orig.Parents[1] {
		t.Errorf("Parents: got %v, want %v", got.Parents, orig.Parents)
	}
	if got.Author != orig.Author {
		t.Errorf("Author: got %q, want %q", got.Author, orig.Author)
	}
	if got.Timestamp != orig.Timestamp {
		t.Errorf("Timestamp: got %d, want %d", got.Timestamp, orig.Timestamp)
	}
	if got.Message != orig.Message {
		t.Errorf("Message: got %q, want %q", got.Message, orig.Message)
	}
}

func TestMarshalCommitParentOrderMatters(t *testing.T) {
	c1 := &CommitObj{TreeHash: testHash(1), Parents: []Hash{testHash(2), testHash(3)}, Author: "a", Timestamp: 1}
	c2 := &CommitObj{TreeHash: testHash(1), Parents: []Hash{testHash(3), testHash(2)}, Author: "a", Timestamp: 1}
	d1, err := MarshalCommit(c1)
	if err != nil {
		t.Fatalf("MarshalCommit: %v", err)
	}
	d2, err := MarshalCommit(c2)
	if err != nil {
		t.Fatalf("MarshalCommit: %v", err)
	}
	if HashObject(TypeCommit, d1) == HashObject(TypeCommit, d2) {
		t.Fatal("reordering parents should change the commit id")
	}
}

func TestMarshalCommitRejectsInvalid(t *testing.T) {
	if _, err := MarshalCommit(&CommitObj{TreeHash: "bogus"}); err == nil {
		t.Error("expected error for invalid tree hash")
	}
	if _, err := MarshalCommit(&CommitObj{TreeHash: testHash(1), Parents: []Hash{"bogus"}}); err == nil {
		t.Error("expected error for invalid parent hash")
	}
	if _, err := MarshalCommit(&CommitObj{TreeHash: testHash(1), Author: "a\nb"}); err == nil {
		t.Error("expected error for multi-line author")
	}
}

func TestUnmarshalCommitMissingTree(t *testing.T) {
	if _, err := UnmarshalCommit([]byte("author a\ntimestamp 1\n\nmsg")); err == nil {
		t.Fatal("expected error for commit without tree")
	}
}
