package object

import "fmt"

// Hash is a 64-character lowercase hex digest identifying an object.
type Hash string

// ObjectType identifies the kind of object stored. The set is closed:
// consumers switch over it exhaustively and reject anything else.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// ParseObjectType validates a serialized type tag.
func ParseObjectType(s string) (ObjectType, error) {
	switch ObjectType(s) {
	case TypeBlob, TypeTree, TypeCommit:
		return ObjectType(s), nil
	default:
		return "", fmt.Errorf("unknown object type %q", s)
	}
}

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. Type is TypeBlob or TypeTree.
type TreeEntry struct {
	Name string
	Mode string
	Type ObjectType
	Hash Hash
}

// IsTree reports whether the entry points at a subtree.
func (e TreeEntry) IsTree() bool {
	return e.Type == TypeTree
}

// TreeObj holds a list of tree entries, sorted by Name once serialized.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj represents a commit pointing to a tree with metadata.
// Zero parents is a root commit, two or more is a merge commit.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Message   string
}
