package object

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// VerifySummary reports the outcome of Store.Verify.
type VerifySummary struct {
	Objects   int
	Corrupt   int
	Reachable int
	Missing   int
}

// Verify re-reads every stored object, checking that it decodes and hashes
// back to its id, then walks everything reachable from roots to confirm no
// referenced object is absent. All problems are collected into a single
// *multierror.Error rather than stopping at the first one.
func (s *Store) Verify(roots ...Hash) (*VerifySummary, error) {
	hashes, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	var result *multierror.Error
	summary := &VerifySummary{Objects: len(hashes)}
	for _, h := range hashes {
		if _, _, err := s.Read(h); err != nil {
			if errors.Is(err, ErrCorruptObject) {
				summary.Corrupt++
			}
			result = multierror.Append(result, err)
		}
	}

	reachable, missing, err := s.reachableSet(roots)
	if err != nil {
		result = multierror.Append(result, err)
	}
	summary.Reachable = len(reachable)
	summary.Missing = len(missing)
	for _, h := range missing {
		result = multierror.Append(result, fmt.Errorf("verify: referenced object %s: %w", h, ErrObjectNotFound))
	}

	return summary, result.ErrorOrNil()
}

// reachableSet returns all object hashes reachable from roots by following
// commit and tree references, plus the referenced hashes that are absent.
func (s *Store) reachableSet(roots []Hash) (map[Hash]struct{}, []Hash, error) {
	out := make(map[Hash]struct{}, len(roots))
	var missing []Hash
	missingSeen := make(map[Hash]struct{})

	stack := make([]Hash, 0, len(roots))
	stack = append(stack, roots...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := out[h]; ok {
			continue
		}
		if !s.Has(h) {
			if _, ok := missingSeen[h]; !ok {
				missingSeen[h] = struct{}{}
				missing = append(missing, h)
			}
			continue
		}
		out[h] = struct{}{}

		objType, data, err := s.Read(h)
		if err != nil {
			// Already reported by the integrity pass.
			continue
		}
		refs, err := referencedHashes(objType, data)
		if err != nil {
			return out, missing, fmt.Errorf("verify: parse %s (%s): %w", h, objType, err)
		}
		stack = append(stack, refs...)
	}
	return out, missing, nil
}

func referencedHashes(objType ObjectType, data []byte) ([]Hash, error) {
	switch objType {
	case TypeBlob:
		return nil, nil
	case TypeCommit:
		commit, err := UnmarshalCommit(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, 1+len(commit.Parents))
		refs = append(refs, commit.TreeHash)
		refs = append(refs, commit.Parents...)
		return refs, nil
	case TypeTree:
		tree, err := UnmarshalTree(data)
		if err != nil {
			return nil, err
		}
		refs := make([]Hash, 0, len(tree.Entries))
		for _, e := range tree.Entries {
			refs = append(refs, e.Hash)
		}
		return refs, nil
	default:
		return nil, fmt.Errorf("unsupported object type %q", objType)
	}
}
