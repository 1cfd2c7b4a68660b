package refs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/arbor/pkg/object"
)

const (
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
)

// FileStore keeps one file per ref under a metadata directory, plus a HEAD
// file. Writes take a "<ref>.lock" file with O_EXCL, compare the current
// value, write the new one into the lock and rename it over the ref.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir (normally ".arbor").
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) refPath(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

func (s *FileStore) Read(ctx context.Context, name string) (object.Hash, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	h, err := readRefHash(s.refPath(name))
	if err != nil {
		return "", false, fmt.Errorf("read ref %q: %w", name, err)
	}
	return h, h != "", nil
}

func (s *FileStore) Update(ctx context.Context, name string, expectedOld, newID object.Hash) (bool, error) {
	if err := checkUpdate(name, expectedOld, newID); err != nil {
		return false, err
	}
	return s.swap(ctx, s.refPath(name), func(cur string) (string, bool, error) {
		if object.Hash(cur) != expectedOld {
			return "", false, nil
		}
		return string(newID), true, nil
	})
}

func (s *FileStore) Delete(ctx context.Context, name string, expectedOld object.Hash) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	return s.swap(ctx, s.refPath(name), func(cur string) (string, bool, error) {
		if cur == "" || (expectedOld != "" && object.Hash(cur) != expectedOld) {
			return "", false, nil
		}
		return "", true, nil
	})
}

// List returns refs whose full name starts with prefix.
func (s *FileStore) List(ctx context.Context, prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(s.dir, "refs")
	out := make(map[string]object.Hash)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		h, err := readRefHash(path)
		if err != nil {
			return err
		}
		if h != "" {
			out[name] = h
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return out, nil
}

func (s *FileStore) headPath() string { return filepath.Join(s.dir, "HEAD") }

func (s *FileStore) ReadHead(ctx context.Context) (Head, error) {
	if err := ctx.Err(); err != nil {
		return Head{}, err
	}
	data, err := os.ReadFile(s.headPath())
	if errors.Is(err, fs.ErrNotExist) {
		return Head{}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	h, err := parseHead(string(data))
	if err != nil {
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	return h, nil
}

func (s *FileStore) SetHead(ctx context.Context, h Head) error {
	if err := h.validate(); err != nil {
		return err
	}
	_, err := s.swap(ctx, s.headPath(), func(string) (string, bool, error) {
		return h.String(), true, nil
	})
	return err
}

func (s *FileStore) UpdateHead(ctx context.Context, expected, next Head) (bool, error) {
	if err := next.validate(); err != nil {
		return false, err
	}
	return s.swap(ctx, s.headPath(), func(cur string) (string, bool, error) {
		curHead, err := parseHead(cur)
		if err != nil {
			return "", false, err
		}
		if curHead != expected {
			return "", false, nil
		}
		return next.String(), true, nil
	})
}

func (s *FileStore) Close() error { return nil }

// swap runs decide under the path's lock. decide sees the current content
// ("" when absent) and returns the replacement; an empty replacement removes
// the file.
func (s *FileStore) swap(ctx context.Context, path string, decide func(cur string) (string, bool, error)) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("update %s: mkdir: %w", path, err)
	}

	lockPath := path + ".lock"
	lockFile, err := acquireRefLock(ctx, lockPath)
	if err != nil {
		return false, fmt.Errorf("update %s: lock: %w", path, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	cur, err := readRefHash(path)
	if err != nil {
		return false, fmt.Errorf("update %s: read old value: %w", path, err)
	}
	next, ok, err := decide(string(cur))
	if err != nil || !ok {
		return false, err
	}

	if next == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("update %s: remove: %w", path, err)
		}
		return true, nil
	}

	if _, err := lockFile.WriteString(next + "\n"); err != nil {
		return false, fmt.Errorf("update %s: write: %w", path, err)
	}
	if err := lockFile.Sync(); err != nil {
		return false, fmt.Errorf("update %s: sync: %w", path, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return false, fmt.Errorf("update %s: close: %w", path, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, path); err != nil {
		return false, fmt.Errorf("update %s: rename: %w", path, err)
	}
	cleanupLock = false
	return true, nil
}

func acquireRefLock(ctx context.Context, lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(refLockRetryDelay):
		}
	}
}

func readRefHash(path string) (object.Hash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}
