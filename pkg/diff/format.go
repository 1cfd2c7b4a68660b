package diff

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultContext is the number of unchanged lines shown around each change
// in unified output.
const DefaultContext = 3

// Unified renders a unified patch between a and b. Identical inputs render
// as the empty string; binary inputs render a one-line notice instead of
// hunks.
func Unified(aName, bName string, a, b []byte, context int) (string, error) {
	if string(a) == string(b) {
		return "", nil
	}
	if IsBinary(a) || IsBinary(b) {
		return fmt.Sprintf("Binary files %s and %s differ\n", aName, bName), nil
	}
	if context < 0 {
		context = DefaultContext
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: aName,
		ToFile:   bName,
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("unified diff %s: %w", bName, err)
	}
	return text, nil
}

// FormatScript renders a Script as +/- prefixed lines, one per line of
// content, without hunk headers.
func FormatScript(s Script) string {
	if s.Binary {
		return "Binary content differs\n"
	}
	var b strings.Builder
	for _, h := range s.Hunks {
		var marker byte
		switch h.Op {
		case Insert:
			marker = '+'
		case Delete:
			marker = '-'
		default:
			marker = ' '
		}
		for _, l := range h.Lines {
			b.WriteByte(marker)
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// FormatChanges renders a name-status listing such as "M\tpath".
func FormatChanges(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		var code string
		switch c.Kind {
		case Added:
			code = "A"
		case Removed:
			code = "D"
		case Modified:
			code = "M"
		case TypeChanged:
			code = "T"
		}
		fmt.Fprintf(&b, "%s\t%s\n", code, c.Path)
	}
	return b.String()
}
