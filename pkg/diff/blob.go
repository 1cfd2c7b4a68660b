package diff

import (
	"bytes"
	"unicode/utf8"
)

// Hunk is a run of consecutive lines sharing one operation.
type Hunk struct {
	Op    OpKind
	Lines []string
}

// Script is the line-level difference between two blobs. Binary content
// yields no hunks.
type Script struct {
	Binary bool
	Hunks  []Hunk
}

// Changed reports whether the script contains any insertion or deletion.
func (s Script) Changed() bool {
	for _, h := range s.Hunks {
		if h.Op != Equal {
			return true
		}
	}
	return false
}

// IsBinary reports whether data should be treated as opaque bytes: it holds
// a NUL byte or is not valid UTF-8.
func IsBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data)
}

// Blobs compares two blob payloads line by line. When either side is binary
// the script is marked Binary and carries no hunks.
func Blobs(a, b []byte) Script {
	if IsBinary(a) || IsBinary(b) {
		return Script{Binary: true}
	}

	ops := Lines(SplitLines(string(a)), SplitLines(string(b)))
	var hunks []Hunk
	for _, op := range ops {
		if n := len(hunks); n > 0 && hunks[n-1].Op == op.Kind {
			hunks[n-1].Lines = append(hunks[n-1].Lines, op.Line)
			continue
		}
		hunks = append(hunks, Hunk{Op: op.Kind, Lines: []string{op.Line}})
	}
	return Script{Hunks: hunks}
}
