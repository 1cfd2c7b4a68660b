package refs

import (
	"context"
	"strings"
	"sync"

	"github.com/odvcencio/arbor/pkg/object"
)

// MemoryStore is an in-process ref store.
type MemoryStore struct {
	mu   sync.Mutex
	refs map[string]object.Hash
	head Head
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{refs: make(map[string]object.Hash)}
}

func (s *MemoryStore) Read(_ context.Context, name string) (object.Hash, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.refs[name]
	return h, ok, nil
}

func (s *MemoryStore) Update(_ context.Context, name string, expectedOld, newID object.Hash) (bool, error) {
	if err := checkUpdate(name, expectedOld, newID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs[name] != expectedOld {
		return false, nil
	}
	s.refs[name] = newID
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, name string, expectedOld object.Hash) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.refs[name]
	if !ok || (expectedOld != "" && cur != expectedOld) {
		return false, nil
	}
	delete(s.refs, name)
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) (map[string]object.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]object.Hash)
	for name, h := range s.refs {
		if strings.HasPrefix(name, prefix) {
			out[name] = h
		}
	}
	return out, nil
}

func (s *MemoryStore) ReadHead(context.Context) (Head, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head, nil
}

func (s *MemoryStore) SetHead(_ context.Context, h Head) error {
	if err := h.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.head = h
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateHead(_ context.Context, expected, next Head) (bool, error) {
	if err := next.validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head != expected {
		return false, nil
	}
	s.head = next
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }
