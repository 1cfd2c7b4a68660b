package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name, compared as
// raw bytes, so the encoding (and therefore the id) does not depend on the
// order entries were added. Each entry is one line:
//
//	mode type hash name
//
// The name comes last so it may contain spaces. An empty tree encodes to
// zero bytes.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for i, e := range sorted {
		if err := ValidateEntryName(e.Name); err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		if i > 0 && sorted[i-1].Name == e.Name {
			return nil, fmt.Errorf("marshal tree: duplicate entry %q", e.Name)
		}
		if !ValidHash(string(e.Hash)) {
			return nil, fmt.Errorf("marshal tree: entry %q: invalid hash %q", e.Name, e.Hash)
		}
		mode, err := entryMode(e)
		if err != nil {
			return nil, fmt.Errorf("marshal tree: entry %q: %w", e.Name, err)
		}
		fmt.Fprintf(&buf, "%s %s %s %s\n", mode, e.Type, e.Hash, e.Name)
	}
	return buf.Bytes(), nil
}

// ValidateEntryName rejects names that cannot be a single path segment.
func ValidateEntryName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty entry name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid entry name %q", name)
	case strings.ContainsAny(name, "/\n\x00"):
		return fmt.Errorf("invalid entry name %q", name)
	}
	return nil
}

func entryMode(e TreeEntry) (string, error) {
	switch e.Type {
	case TypeTree:
		return TreeModeDir, nil
	case TypeBlob:
		switch e.Mode {
		case "":
			return TreeModeFile, nil
		case TreeModeFile, TreeModeExecutable:
			return e.Mode, nil
		default:
			return "", fmt.Errorf("unknown blob mode %q", e.Mode)
		}
	default:
		return "", fmt.Errorf("entry type %q not allowed in tree", e.Type)
	}
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		entry := TreeEntry{
			Mode: parts[0],
			Type: ObjectType(parts[1]),
			Hash: Hash(parts[2]),
			Name: parts[3],
		}
		switch {
		case entry.Type == TypeTree && entry.Mode == TreeModeDir:
		case entry.Type == TypeBlob && (entry.Mode == TreeModeFile || entry.Mode == TreeModeExecutable):
		default:
			return nil, fmt.Errorf("unmarshal tree: entry %q: bad mode/type %s/%s", entry.Name, entry.Mode, entry.Type)
		}
		if !ValidHash(string(entry.Hash)) {
			return nil, fmt.Errorf("unmarshal tree: entry %q: invalid hash", entry.Name)
		}
		tr.Entries = append(tr.Entries, entry)
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	timestamp T
//
//	message
func MarshalCommit(c *CommitObj) ([]byte, error) {
	if !ValidHash(string(c.TreeHash)) {
		return nil, fmt.Errorf("marshal commit: invalid tree hash %q", c.TreeHash)
	}
	if strings.ContainsAny(c.Author, "\n\x00") {
		return nil, fmt.Errorf("marshal commit: author contains a newline")
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		if !ValidHash(string(p)) {
			return nil, fmt.Errorf("marshal commit: invalid parent hash %q", p)
		}
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "timestamp %d\n", c.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes(), nil
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad timestamp %q: %w", val, err)
			}
			c.Timestamp = ts
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	if c.TreeHash == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree")
	}
	return c, nil
}
