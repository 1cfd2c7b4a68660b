// Package worktree moves snapshots between the object store and a real
// directory. It validates incoming paths, writes trees out, removes files
// that are no longer tracked and scans a directory for candidate files.
package worktree

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// MetaDir is the repository metadata directory at the worktree root.
const MetaDir = ".arbor"

var (
	ErrPathOutsideRepository = errors.New("path outside repository")
	ErrSuspiciousFile        = errors.New("suspicious file")
)

var suspiciousExtensions = map[string]bool{
	".exe": true,
	".dll": true,
	".so":  true,
	".sh":  true,
	".bat": true,
	".cmd": true,
	".ps1": true,
}

// Policy controls which worktree paths are accepted.
type Policy struct {
	AllowExecutables bool
}

// Validate checks a path relative to the repository root. Absolute paths,
// paths that climb out of the root and paths inside the metadata directory
// fail with ErrPathOutsideRepository. Files with an executable-looking
// extension fail with ErrSuspiciousFile unless the policy allows them.
func (p Policy) Validate(rel string) error {
	clean, err := cleanRel(rel)
	if err != nil {
		return err
	}
	if !p.AllowExecutables && suspiciousExtensions[strings.ToLower(path.Ext(clean))] {
		return fmt.Errorf("%w: %s", ErrSuspiciousFile, rel)
	}
	return nil
}

// ValidatePath validates rel with the default policy.
func ValidatePath(rel string) error {
	return Policy{}.Validate(rel)
}

// Valid reports whether ValidatePath accepts rel.
func Valid(rel string) bool {
	return ValidatePath(rel) == nil
}

// cleanRel normalizes rel to a clean slash path inside the root.
func cleanRel(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathOutsideRepository)
	}
	slashed := filepath.ToSlash(rel)
	if filepath.IsAbs(rel) || strings.HasPrefix(slashed, "/") {
		return "", fmt.Errorf("%w: %s is absolute", ErrPathOutsideRepository, rel)
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRepository, rel)
	}
	if first, _, _ := strings.Cut(clean, "/"); first == MetaDir {
		return "", fmt.Errorf("%w: %s is repository metadata", ErrPathOutsideRepository, rel)
	}
	return clean, nil
}

// Rel converts a path given on a command line (absolute, or relative to
// cwd) into a clean slash path relative to root.
func Rel(root, cwd, p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, p)
	}
	r, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRepository, p)
	}
	if r == "." {
		return "", fmt.Errorf("%w: %s is the repository root", ErrPathOutsideRepository, p)
	}
	return cleanRel(r)
}
