// Package refs stores mutable names for commits. Every write is a
// compare-and-swap so concurrent writers cannot silently lose updates.
package refs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/arbor/pkg/object"
)

// HeadsPrefix is the namespace holding branch refs.
const HeadsPrefix = "refs/heads/"

var (
	// ErrRefUpdateConflict is returned by helpers that turn a failed
	// compare-and-swap into an error.
	ErrRefUpdateConflict = errors.New("ref update conflict")
	ErrInvalidRefName    = errors.New("invalid ref name")
	ErrInvalidRefValue   = errors.New("invalid ref value")
)

// Store is a ref backend. Update and Delete only take effect when the
// current value equals expectedOld; a mismatch reports false and changes
// nothing. An empty expectedOld on Update means the ref must not exist yet;
// on Delete it removes whatever value is present.
type Store interface {
	Read(ctx context.Context, name string) (object.Hash, bool, error)
	Update(ctx context.Context, name string, expectedOld, newID object.Hash) (bool, error)
	Delete(ctx context.Context, name string, expectedOld object.Hash) (bool, error)
	List(ctx context.Context, prefix string) (map[string]object.Hash, error)

	ReadHead(ctx context.Context) (Head, error)
	SetHead(ctx context.Context, h Head) error
	UpdateHead(ctx context.Context, expected, next Head) (bool, error)

	Close() error
}

// Head is either symbolic (naming a ref) or detached (naming a commit).
// The zero Head means HEAD has never been written.
type Head struct {
	Symbolic string
	Detached object.Hash
}

// SymbolicHead returns a Head pointing at ref.
func SymbolicHead(ref string) Head { return Head{Symbolic: ref} }

// DetachedHead returns a Head pointing directly at a commit.
func DetachedHead(h object.Hash) Head { return Head{Detached: h} }

func (h Head) IsZero() bool { return h.Symbolic == "" && h.Detached == "" }

// IsDetached reports whether HEAD names a commit instead of a ref.
func (h Head) IsDetached() bool { return h.Detached != "" }

// String renders the persisted form: "ref: <name>" or the raw id.
func (h Head) String() string {
	if h.Symbolic != "" {
		return "ref: " + h.Symbolic
	}
	return string(h.Detached)
}

func (h Head) validate() error {
	switch {
	case h.Symbolic != "" && h.Detached != "":
		return fmt.Errorf("head: %w: both symbolic and detached", ErrInvalidRefValue)
	case h.Symbolic != "":
		return ValidateName(h.Symbolic)
	case h.Detached != "":
		return validateValue(h.Detached)
	default:
		return fmt.Errorf("head: %w: empty", ErrInvalidRefValue)
	}
}

func parseHead(content string) (Head, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Head{}, nil
	}
	if target, ok := strings.CutPrefix(content, "ref: "); ok {
		target = strings.TrimSpace(target)
		if err := ValidateName(target); err != nil {
			return Head{}, err
		}
		return Head{Symbolic: target}, nil
	}
	id := object.Hash(content)
	if err := validateValue(id); err != nil {
		return Head{}, err
	}
	return Head{Detached: id}, nil
}

// ValidateName checks a full ref name such as "refs/heads/main".
func ValidateName(name string) error {
	if !strings.HasPrefix(name, "refs/") {
		return fmt.Errorf("%w %q: must start with refs/", ErrInvalidRefName, name)
	}
	if strings.Contains(name, "@{") {
		return fmt.Errorf("%w %q: contains @{", ErrInvalidRefName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		switch {
		case seg == "":
			return fmt.Errorf("%w %q: empty segment", ErrInvalidRefName, name)
		case strings.HasPrefix(seg, "."):
			return fmt.Errorf("%w %q: segment starts with '.'", ErrInvalidRefName, name)
		case strings.HasSuffix(seg, ".lock"):
			return fmt.Errorf("%w %q: segment ends with .lock", ErrInvalidRefName, name)
		}
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w %q: contains ..", ErrInvalidRefName, name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f || strings.ContainsRune(" ~^:?*[\\", r) {
			return fmt.Errorf("%w %q: forbidden character %q", ErrInvalidRefName, name, r)
		}
	}
	return nil
}

func validateValue(h object.Hash) error {
	if !object.ValidHash(string(h)) {
		return fmt.Errorf("%w %q", ErrInvalidRefValue, h)
	}
	return nil
}

// checkUpdate validates the arguments shared by every backend's Update.
func checkUpdate(name string, expectedOld, newID object.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if expectedOld != "" {
		if err := validateValue(expectedOld); err != nil {
			return err
		}
	}
	return validateValue(newID)
}

// Qualify expands a short branch name to its full ref. Names that already
// start with "refs/" are returned unchanged.
func Qualify(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return HeadsPrefix + name
}

// BranchName strips the branch namespace from a full ref name.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, HeadsPrefix)
}

// Resolve maps a name to a commit id. "HEAD" follows a symbolic head to its
// target; other names are qualified with Qualify. The bool is false when the
// name (or HEAD's target) does not exist yet.
func Resolve(ctx context.Context, s Store, name string) (object.Hash, bool, error) {
	if name == "HEAD" {
		head, err := s.ReadHead(ctx)
		if err != nil {
			return "", false, err
		}
		if head.IsDetached() {
			return head.Detached, true, nil
		}
		if head.Symbolic == "" {
			return "", false, nil
		}
		return s.Read(ctx, head.Symbolic)
	}
	return s.Read(ctx, Qualify(name))
}

// Advance is Update that reports a lost race as ErrRefUpdateConflict.
func Advance(ctx context.Context, s Store, name string, expectedOld, newID object.Hash) error {
	ok, err := s.Update(ctx, name, expectedOld, newID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("update ref %q: %w (expected %s)", name, ErrRefUpdateConflict, displayHash(expectedOld))
	}
	return nil
}

func displayHash(h object.Hash) string {
	if h == "" {
		return "<none>"
	}
	return string(h)
}
