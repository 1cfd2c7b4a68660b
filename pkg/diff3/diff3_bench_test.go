package diff3

import (
	"fmt"
	"strings"
	"testing"
)

// numbered returns n lines with the given indexes replaced.
func numbered(n int, replace map[int]string) []byte {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if r, ok := replace[i]; ok {
			b.WriteString(r)
		} else {
			fmt.Fprintf(&b, "line-%04d", i)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func BenchmarkMerge(b *testing.B) {
	cases := []struct {
		name     string
		n        int
		conflict bool
	}{
		{"50-lines-clean", 50, false},
		{"1000-lines-clean", 1000, false},
		{"1000-lines-conflict", 1000, true},
	}
	for _, tc := range cases {
		base := numbered(tc.n, nil)
		ours := numbered(tc.n, map[int]string{tc.n / 10: "OURS"})
		theirsAt := tc.n - tc.n/10
		if tc.conflict {
			theirsAt = tc.n / 10
		}
		theirs := numbered(tc.n, map[int]string{theirsAt: "THEIRS"})

		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if r := Merge(base, ours, theirs); r.HasConflicts != tc.conflict {
					b.Fatalf("HasConflicts = %v, want %v", r.HasConflicts, tc.conflict)
				}
			}
		})
	}
}
