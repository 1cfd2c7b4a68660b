// Package diff3 performs line-based three-way merges of text.
package diff3

import (
	"bytes"

	"github.com/odvcencio/arbor/pkg/diff"
)

// Conflict marker lines written around overlapping changes.
const (
	MarkerOurs   = "<<<<<<< ours"
	MarkerSep    = "======="
	MarkerTheirs = ">>>>>>> theirs"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Both sides changed the same base region differently.
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged       []byte // Full merged content, with markers if conflicts exist.
	HasConflicts bool
	Conflicts    int
	Hunks        []Hunk
}

// Merge performs a three-way merge of base, ours and theirs.
//
//  1. Split the three inputs into lines.
//  2. Diff base against each side and turn each script into chunks: runs of
//     base lines that a side either kept or replaced.
//  3. Walk both chunk lists in base order. Where only one side changed a
//     region that side wins; identical changes merge cleanly; anything else
//     is a conflict rendered between markers.
//  4. Merge the "no newline at end of file" state the same way and drop the
//     final newline when the result should not have one and does not end in
//     a conflict marker.
func Merge(base, ours, theirs []byte) Result {
	baseLines := diff.SplitLines(string(base))
	oursChunks := buildChunks(baseLines, diff.SplitLines(string(ours)))
	theirsChunks := buildChunks(baseLines, diff.SplitLines(string(theirs)))
	res := mergeChunks(baseLines, oursChunks, theirsChunks)

	bareEnd := pick(missingNewline(base), missingNewline(ours), missingNewline(theirs))
	if bareEnd && !bytes.HasSuffix(res.Merged, []byte(MarkerTheirs+"\n")) {
		res.Merged = bytes.TrimSuffix(res.Merged, []byte("\n"))
	}
	return res
}

func missingNewline(b []byte) bool {
	return len(b) > 0 && b[len(b)-1] != '\n'
}

// pick resolves a two-valued property three ways: a side that changed it
// from base wins.
func pick(base, ours, theirs bool) bool {
	if ours == base {
		return theirs
	}
	return ours
}

// chunk represents a contiguous region relative to the base.
type chunk struct {
	baseStart, baseEnd int      // range [baseStart, baseEnd) in base
	lines              []string // replacement lines for this region
	changed            bool
}

// buildChunks converts a two-way diff (base to side) into chunks that tile
// the base. Insertions produce zero-width chunks.
func buildChunks(base, side []string) []chunk {
	ops := diff.Lines(base, side)

	var chunks []chunk
	baseIdx := 0
	for i := 0; i < len(ops); {
		if ops[i].Kind == diff.Equal {
			chunks = append(chunks, chunk{
				baseStart: baseIdx,
				baseEnd:   baseIdx + 1,
				lines:     []string{ops[i].Line},
			})
			baseIdx++
			i++
			continue
		}

		start := baseIdx
		var sideLines []string
		for i < len(ops) && ops[i].Kind != diff.Equal {
			if ops[i].Kind == diff.Delete {
				baseIdx++
			} else {
				sideLines = append(sideLines, ops[i].Line)
			}
			i++
		}
		chunks = append(chunks, chunk{
			baseStart: start,
			baseEnd:   baseIdx,
			lines:     sideLines,
			changed:   true,
		})
	}
	return chunks
}

type merger struct {
	baseLines []string
	merged    bytes.Buffer
	hunks     []Hunk
	conflicts int
}

// mergeChunks walks the ours and theirs chunk lists in parallel, aligned by
// base position.
func mergeChunks(baseLines []string, oursChunks, theirsChunks []chunk) Result {
	m := &merger{baseLines: baseLines}
	oi, ti := 0, 0

	for oi < len(oursChunks) || ti < len(theirsChunks) {
		if oi == len(oursChunks) {
			m.resolve(theirsChunks[ti:ti+1], nil)
			ti++
			continue
		}
		if ti == len(theirsChunks) {
			m.resolve(oursChunks[oi:oi+1], nil)
			oi++
			continue
		}

		oc, tc := oursChunks[oi], theirsChunks[ti]
		if oc.baseStart == tc.baseStart && oc.baseEnd == tc.baseEnd {
			m.resolve(oursChunks[oi:oi+1], theirsChunks[ti:ti+1])
			oi++
			ti++
			continue
		}

		// Misaligned: one side's change spans several chunks of the other.
		// Grow the region until neither side has a chunk starting inside it.
		regionEnd := max(oc.baseEnd, tc.baseEnd)
		oStart, tStart := oi, ti
		for {
			grew := false
			for oi < len(oursChunks) && (oi == oStart || oursChunks[oi].baseStart < regionEnd) {
				if oursChunks[oi].baseEnd > regionEnd {
					regionEnd = oursChunks[oi].baseEnd
					grew = true
				}
				oi++
			}
			for ti < len(theirsChunks) && (ti == tStart || theirsChunks[ti].baseStart < regionEnd) {
				if theirsChunks[ti].baseEnd > regionEnd {
					regionEnd = theirsChunks[ti].baseEnd
					grew = true
				}
				ti++
			}
			if !grew {
				break
			}
		}
		m.resolve(oursChunks[oStart:oi], theirsChunks[tStart:ti])
	}

	return Result{
		Merged:       m.merged.Bytes(),
		HasConflicts: m.conflicts > 0,
		Conflicts:    m.conflicts,
		Hunks:        m.hunks,
	}
}

// resolve merges one base region covered by ours and theirs. A nil side
// means the other side's chunks stand alone.
func (m *merger) resolve(ours, theirs []chunk) {
	start, end := regionBounds(ours, theirs)
	base := m.baseLines[start:end]
	oursOut, oursChanged := assembleRegion(ours, base)
	theirsOut, theirsChanged := assembleRegion(theirs, base)

	h := Hunk{Type: HunkClean, Base: joinLines(base)}
	switch {
	case !oursChanged && !theirsChanged:
		h.Merged = joinLines(base)
	case oursChanged && !theirsChanged:
		h.Ours = joinLines(oursOut)
		h.Merged = h.Ours
	case !oursChanged && theirsChanged:
		h.Theirs = joinLines(theirsOut)
		h.Merged = h.Theirs
	case linesEqual(oursOut, theirsOut):
		h.Ours = joinLines(oursOut)
		h.Theirs = h.Ours
		h.Merged = h.Ours
	default:
		m.conflicts++
		h.Type = HunkConflict
		h.Ours = joinLines(oursOut)
		h.Theirs = joinLines(theirsOut)
		writeConflict(&m.merged, oursOut, theirsOut)
		m.hunks = append(m.hunks, h)
		return
	}
	m.merged.Write(h.Merged)
	m.hunks = append(m.hunks, h)
}

func regionBounds(ours, theirs []chunk) (int, int) {
	all := append(append([]chunk(nil), ours...), theirs...)
	start, end := all[0].baseStart, all[0].baseEnd
	for _, c := range all[1:] {
		start = min(start, c.baseStart)
		end = max(end, c.baseEnd)
	}
	return start, end
}

// assembleRegion concatenates a side's replacement lines over a region. A
// side with no chunks keeps the base lines unchanged.
func assembleRegion(chunks []chunk, base []string) ([]string, bool) {
	if chunks == nil {
		return base, false
	}
	var lines []string
	changed := false
	for _, c := range chunks {
		lines = append(lines, c.lines...)
		changed = changed || c.changed
	}
	return lines, changed
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string) {
	buf.WriteString(MarkerOurs + "\n")
	for _, l := range oursLines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	buf.WriteString(MarkerSep + "\n")
	for _, l := range theirsLines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	buf.WriteString(MarkerTheirs + "\n")
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
