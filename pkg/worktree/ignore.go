package worktree

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreFile is read from the worktree root.
const IgnoreFile = ".arborignore"

// Ignore matches slash paths against gitignore-style patterns. The last
// matching pattern wins so "!pattern" can re-include a path.
type Ignore struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob     string
	negated  bool
	dirOnly  bool
	anchored bool // contains a slash, so it matches the full path
	re       *regexp.Regexp
}

// LoadIgnore reads root/.arborignore. The metadata directory and .git are
// always ignored; a missing ignore file is not an error.
func LoadIgnore(root string) (*Ignore, error) {
	ig := NewIgnore(MetaDir+"/", ".git/")
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if os.IsNotExist(err) {
		return ig, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ig.Add(scanner.Text())
	}
	return ig, scanner.Err()
}

// NewIgnore builds a matcher from pattern lines.
func NewIgnore(lines ...string) *Ignore {
	ig := &Ignore{}
	for _, l := range lines {
		ig.Add(l)
	}
	return ig
}

// Add parses one pattern line. Blank lines and comments are skipped.
func (ig *Ignore) Add(line string) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	var p ignorePattern
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		p.negated = true
		line = rest
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	line = strings.TrimPrefix(line, "/")
	p.anchored = strings.Contains(line, "/")
	p.glob = line
	if strings.Contains(line, "**") {
		p.re = regexp.MustCompile(globToRegex(line))
	}
	ig.patterns = append(ig.patterns, p)
}

// Match reports whether the file rel (a slash path relative to the root)
// is ignored, either directly or because a parent directory is. As with
// git, a file inside an ignored directory cannot be re-included.
func (ig *Ignore) Match(rel string) bool {
	if ig == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	dir, _ := path.Split(rel)
	if dir != "" && ig.MatchDir(strings.TrimSuffix(dir, "/")) {
		return true
	}
	return ig.eval(rel, false)
}

// MatchDir reports whether the directory rel, or any of its parents, is
// ignored.
func (ig *Ignore) MatchDir(rel string) bool {
	if ig == nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for i := 0; i <= len(rel); i++ {
		if i == len(rel) || rel[i] == '/' {
			if ig.eval(rel[:i], true) {
				return true
			}
		}
	}
	return false
}

func (ig *Ignore) eval(target string, isDir bool) bool {
	ignored := false
	for _, p := range ig.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.matchOne(target) {
			ignored = !p.negated
		}
	}
	return ignored
}

func (p *ignorePattern) matchOne(rel string) bool {
	target := rel
	if !p.anchored {
		target = path.Base(rel)
	}
	if p.re != nil {
		return p.re.MatchString(target)
	}
	ok, _ := path.Match(p.glob, target)
	return ok
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && i+2 < len(pattern) && pattern[i+1] == '*' && pattern[i+2] == '/':
			b.WriteString("(?:.*/)?")
			i += 2
		case ch == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
