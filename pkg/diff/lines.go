package diff

import "strings"

// OpKind classifies a line in an edit script.
type OpKind int

const (
	Equal  OpKind = iota // Line is unchanged between a and b.
	Insert               // Line was inserted (present in b only).
	Delete               // Line was deleted (present in a only).
)

func (k OpKind) String() string {
	switch k {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is a single line operation in an edit script produced by Lines.
type Op struct {
	Kind OpKind
	Line string
}

// Lines computes a minimal edit script turning a into b, comparing whole
// lines. Within each run of changes, deletions are listed before insertions.
//
// The edit graph is split at the middle snake of an optimal path and each
// half is solved in turn (Myers' linear-space refinement). Time is
// O((N+M)*D); memory stays O(N+M) however large D grows.
func Lines(a, b []string) []Op {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	ia, ib := internLines(a, b)
	s := &scripter{a: a, b: b, ia: ia, ib: ib}
	s.solve()
	return deletesFirst(s.ops)
}

// internLines maps every distinct line to a small integer so the search
// compares ints instead of strings.
func internLines(a, b []string) ([]int, []int) {
	ids := make(map[string]int, len(a))
	intern := func(lines []string) []int {
		out := make([]int, len(lines))
		for i, l := range lines {
			id, ok := ids[l]
			if !ok {
				id = len(ids)
				ids[l] = id
			}
			out[i] = id
		}
		return out
	}
	return intern(a), intern(b)
}

// region is the part of the edit graph between a[aLo:aHi] and b[bLo:bHi].
type region struct {
	aLo, aHi, bLo, bHi int
}

type scripter struct {
	a, b   []string
	ia, ib []int
	ops    []Op

	// Diagonal frontiers, reused across regions.
	fwd, rev []int
}

type pending struct {
	region
	unchanged bool // a[aLo:aHi] is a run of equal lines to emit
}

// solve walks regions left to right with an explicit stack. A region is
// trimmed of its common head and tail, emitted directly when one side is
// empty, and otherwise split in two at its middle snake.
func (s *scripter) solve() {
	stack := []pending{{region: region{0, len(s.ia), 0, len(s.ib)}}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.unchanged {
			s.emit(Equal, s.a[p.aLo:p.aHi])
			continue
		}

		r := p.region
		for r.aLo < r.aHi && r.bLo < r.bHi && s.ia[r.aLo] == s.ib[r.bLo] {
			s.ops = append(s.ops, Op{Kind: Equal, Line: s.a[r.aLo]})
			r.aLo++
			r.bLo++
		}
		tailEnd := r.aHi
		for r.aLo < r.aHi && r.bLo < r.bHi && s.ia[r.aHi-1] == s.ib[r.bHi-1] {
			r.aHi--
			r.bHi--
		}
		if r.aHi < tailEnd {
			stack = append(stack, pending{region: region{aLo: r.aHi, aHi: tailEnd}, unchanged: true})
		}

		if r.aLo == r.aHi || r.bLo == r.bHi {
			s.replace(r)
			continue
		}
		x, y, ok := s.middleSnake(r)
		if !ok || (x == r.aLo && y == r.bLo) || (x == r.aHi && y == r.bHi) {
			s.replace(r)
			continue
		}
		stack = append(stack,
			pending{region: region{x, r.aHi, y, r.bHi}},
			pending{region: region{r.aLo, x, r.bLo, y}},
		)
	}
}

// replace emits the whole region as deletions followed by insertions.
func (s *scripter) replace(r region) {
	s.emit(Delete, s.a[r.aLo:r.aHi])
	s.emit(Insert, s.b[r.bLo:r.bHi])
}

func (s *scripter) emit(kind OpKind, lines []string) {
	for _, l := range lines {
		s.ops = append(s.ops, Op{Kind: kind, Line: l})
	}
}

// middleSnake runs the forward search from the top-left corner of r and the
// reverse search from its bottom-right corner, one edit step at a time,
// until the furthest-reaching paths overlap. The returned point lies on an
// optimal path. ok is false when the paths never meet, which only happens
// when the two sides share no line.
//
// Frontier values are x offsets within r: fwd[k] measured from the start,
// rev[k] measured back from the end. -1 marks a diagonal not reached yet.
func (s *scripter) middleSnake(r region) (x, y int, ok bool) {
	n, m := r.aHi-r.aLo, r.bHi-r.bLo
	maxD := (n + m + 1) / 2
	off := maxD
	size := 2*maxD + 2
	fwd := frontier(&s.fwd, size)
	rev := frontier(&s.rev, size)
	fwd[off+1], rev[off+1] = 0, 0

	delta := n - m
	// With an odd delta the forward pass detects the overlap, otherwise the
	// reverse pass does.
	oddDelta := delta%2 != 0
	// Diagonals that ran off the edge of r are trimmed from later steps.
	var fLo, fHi, rLo, rHi int

	for d := 0; d < maxD; d++ {
		for k := -d + fLo; k <= d-fHi; k += 2 {
			i := off + k
			var fx int
			if k == -d || (k != d && fwd[i-1] < fwd[i+1]) {
				fx = fwd[i+1]
			} else {
				fx = fwd[i-1] + 1
			}
			fy := fx - k
			for fx < n && fy < m && s.ia[r.aLo+fx] == s.ib[r.bLo+fy] {
				fx++
				fy++
			}
			fwd[i] = fx
			switch {
			case fx > n:
				fHi += 2
			case fy > m:
				fLo += 2
			case oddDelta:
				j := off + delta - k
				if j >= 0 && j < size && rev[j] != -1 && fx >= n-rev[j] {
					return r.aLo + fx, r.bLo + fy, true
				}
			}
		}

		for k := -d + rLo; k <= d-rHi; k += 2 {
			i := off + k
			var rx int
			if k == -d || (k != d && rev[i-1] < rev[i+1]) {
				rx = rev[i+1]
			} else {
				rx = rev[i-1] + 1
			}
			ry := rx - k
			for rx < n && ry < m && s.ia[r.aHi-1-rx] == s.ib[r.bHi-1-ry] {
				rx++
				ry++
			}
			rev[i] = rx
			switch {
			case rx > n:
				rHi += 2
			case ry > m:
				rLo += 2
			case !oddDelta:
				j := off + delta - k
				if j >= 0 && j < size && fwd[j] != -1 {
					fx := fwd[j]
					fy := off + fx - j
					if fx >= n-rx {
						return r.aLo + fx, r.bLo + fy, true
					}
				}
			}
		}
	}
	return 0, 0, false
}

// frontier returns buf resized to size with every slot set to -1.
func frontier(buf *[]int, size int) []int {
	if cap(*buf) < size {
		*buf = make([]int, size)
	}
	v := (*buf)[:size]
	for i := range v {
		v[i] = -1
	}
	return v
}

// deletesFirst reorders every run of non-equal operations so its deletions
// come first. Order within the deletions and within the insertions is kept.
func deletesFirst(ops []Op) []Op {
	out := make([]Op, 0, len(ops))
	var inserts []Op
	for _, op := range ops {
		switch op.Kind {
		case Equal:
			out = append(out, inserts...)
			inserts = inserts[:0]
			out = append(out, op)
		case Delete:
			out = append(out, op)
		case Insert:
			inserts = append(inserts, op)
		}
	}
	return append(out, inserts...)
}

// SplitLines splits s into lines. A trailing newline does not produce an
// extra empty element.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
