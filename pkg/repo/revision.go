package repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/refs"
)

const minShortHash = 4

// ResolveRevision maps a user-supplied revision to a commit id. It accepts
// "HEAD", branch names, full ref names, full object ids and unambiguous id
// prefixes of at least four characters.
func (r *Repo) ResolveRevision(ctx context.Context, rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return "", fmt.Errorf("resolve: %w: empty", ErrUnknownRevision)
	}

	if rev == "HEAD" || refs.ValidateName(refs.Qualify(rev)) == nil {
		h, ok, err := refs.Resolve(ctx, r.Refs, rev)
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", rev, err)
		}
		if ok {
			return h, nil
		}
	}

	if object.ValidHash(rev) {
		if r.Store.Has(object.Hash(rev)) {
			return object.Hash(rev), nil
		}
		return "", fmt.Errorf("resolve %q: %w", rev, ErrUnknownRevision)
	}
	if len(rev) >= minShortHash && isHex(rev) {
		return r.resolvePrefix(rev)
	}
	return "", fmt.Errorf("resolve %q: %w", rev, ErrUnknownRevision)
}

func (r *Repo) resolvePrefix(prefix string) (object.Hash, error) {
	all, err := r.Store.List()
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", prefix, err)
	}
	var match object.Hash
	for _, h := range all {
		if !strings.HasPrefix(string(h), prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("resolve %q: ambiguous id prefix", prefix)
		}
		match = h
	}
	if match == "" {
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrUnknownRevision)
	}
	return match, nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// headState is HEAD together with the commit it currently resolves to.
// Commit is empty on an unborn branch.
type headState struct {
	head   refs.Head
	commit object.Hash
}

func (r *Repo) readHead(ctx context.Context) (headState, error) {
	head, err := r.Refs.ReadHead(ctx)
	if err != nil {
		return headState{}, err
	}
	st := headState{head: head}
	switch {
	case head.IsDetached():
		st.commit = head.Detached
	case head.Symbolic != "":
		h, _, err := r.Refs.Read(ctx, head.Symbolic)
		if err != nil {
			return headState{}, err
		}
		st.commit = h
	}
	return st, nil
}

// advanceHead moves whatever HEAD points at from st.commit to next: the
// branch ref when HEAD is symbolic, HEAD itself when detached. A concurrent
// writer makes this fail with refs.ErrRefUpdateConflict.
func (r *Repo) advanceHead(ctx context.Context, st headState, next object.Hash, reason string) error {
	if st.head.IsDetached() {
		ok, err := r.Refs.UpdateHead(ctx, st.head, refs.DetachedHead(next))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("update HEAD: %w", refs.ErrRefUpdateConflict)
		}
		r.appendReflog("HEAD", st.commit, next, reason)
		return nil
	}
	if st.head.Symbolic == "" {
		return fmt.Errorf("update HEAD: HEAD is not set")
	}
	if err := refs.Advance(ctx, r.Refs, st.head.Symbolic, st.commit, next); err != nil {
		return err
	}
	r.appendReflog(st.head.Symbolic, st.commit, next, reason)
	return nil
}

// commitTree returns the root tree of commit, or "" for an empty commit id.
func (r *Repo) commitTree(commit object.Hash) (object.Hash, error) {
	if commit == "" {
		return "", nil
	}
	c, err := r.Graph.Commit(commit)
	if err != nil {
		return "", err
	}
	return c.TreeHash, nil
}
