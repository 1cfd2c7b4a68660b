package repo

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/odvcencio/arbor/pkg/object"
	"github.com/odvcencio/arbor/pkg/refs"
)

// CreateBranch creates refs/heads/<name> at target. An empty target means
// the commit HEAD resolves to.
func (r *Repo) CreateBranch(ctx context.Context, name string, target object.Hash) error {
	ref := refs.Qualify(name)
	if err := refs.ValidateName(ref); err != nil {
		return fmt.Errorf("create branch: %w", err)
	}
	if target == "" {
		st, err := r.readHead(ctx)
		if err != nil {
			return fmt.Errorf("create branch: %w", err)
		}
		if st.commit == "" {
			return fmt.Errorf("create branch %q: HEAD has no commits yet", name)
		}
		target = st.commit
	}
	if _, err := r.Graph.Commit(target); err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}

	ok, err := r.Refs.Update(ctx, ref, "", target)
	if err != nil {
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("create branch %q: %w", name, ErrBranchExists)
	}
	r.appendReflog(ref, "", target, "branch: created")
	r.Logger.Debug("created branch", zap.String("ref", ref), zap.String("commit", target.Short()))
	return nil
}

// DeleteBranch removes a branch. The current branch cannot be deleted.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	ref := refs.Qualify(name)
	if err := refs.ValidateName(ref); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	head, err := r.Refs.ReadHead(ctx)
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if head.Symbolic == ref {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}
	ok, err := r.Refs.Delete(ctx, ref, "")
	if err != nil {
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("delete branch %q: %w", name, ErrBranchNotFound)
	}
	r.Logger.Debug("deleted branch", zap.String("ref", ref))
	return nil
}

// Branch is a branch name and the commit it points at.
type Branch struct {
	Name    string
	Commit  object.Hash
	Current bool
}

// ListBranches returns branches sorted by name.
func (r *Repo) ListBranches(ctx context.Context) ([]Branch, error) {
	heads, err := r.Refs.List(ctx, refs.HeadsPrefix)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	head, err := r.Refs.ReadHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]Branch, 0, len(heads))
	for ref, h := range heads {
		out = append(out, Branch{Name: refs.BranchName(ref), Commit: h, Current: ref == head.Symbolic})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CurrentBranch returns the branch HEAD points at, or "" when detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	head, err := r.Refs.ReadHead(ctx)
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if head.Symbolic == "" {
		return "", nil
	}
	return refs.BranchName(head.Symbolic), nil
}
