package refs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/odvcencio/arbor/pkg/object"
)

const (
	boltRefsBucket = "refs"
	boltMetaBucket = "meta"
	boltHeadKey    = "HEAD"

	// boltOpenTimeout bounds the wait for another process's file lock.
	boltOpenTimeout = 2 * time.Second
)

// BoltStore keeps refs in a single BoltDB file. Each compare-and-swap runs
// inside one read-write transaction, which bolt serializes.
type BoltStore struct {
	db   *bolt.DB
	once sync.Once
}

// OpenBoltStore opens (or creates) a bolt ref database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt ref store: path is required")
	}
	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(cleaned, 0o600, &bolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(boltRefsBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(boltMetaBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Read(ctx context.Context, name string) (object.Hash, bool, error) {
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	var h object.Hash
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if v := tx.Bucket([]byte(boltRefsBucket)).Get([]byte(name)); v != nil {
			h = object.Hash(v)
		}
		return nil
	})
	return h, h != "", err
}

func (s *BoltStore) Update(ctx context.Context, name string, expectedOld, newID object.Hash) (bool, error) {
	if err := checkUpdate(name, expectedOld, newID); err != nil {
		return false, err
	}
	var swapped bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket([]byte(boltRefsBucket))
		if object.Hash(b.Get([]byte(name))) != expectedOld {
			return nil
		}
		swapped = true
		return b.Put([]byte(name), []byte(newID))
	})
	return swapped && err == nil, err
}

func (s *BoltStore) Delete(ctx context.Context, name string, expectedOld object.Hash) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	var deleted bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket([]byte(boltRefsBucket))
		cur := b.Get([]byte(name))
		if cur == nil || (expectedOld != "" && object.Hash(cur) != expectedOld) {
			return nil
		}
		deleted = true
		return b.Delete([]byte(name))
	})
	return deleted && err == nil, err
}

func (s *BoltStore) List(ctx context.Context, prefix string) (map[string]object.Hash, error) {
	out := make(map[string]object.Hash)
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := tx.Bucket([]byte(boltRefsBucket)).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			out[string(k)] = object.Hash(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) ReadHead(ctx context.Context) (Head, error) {
	var raw string
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw = string(tx.Bucket([]byte(boltMetaBucket)).Get([]byte(boltHeadKey)))
		return nil
	})
	if err != nil {
		return Head{}, err
	}
	return parseHead(raw)
}

func (s *BoltStore) SetHead(ctx context.Context, h Head) error {
	if err := h.validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return tx.Bucket([]byte(boltMetaBucket)).Put([]byte(boltHeadKey), []byte(h.String()))
	})
}

func (s *BoltStore) UpdateHead(ctx context.Context, expected, next Head) (bool, error) {
	if err := next.validate(); err != nil {
		return false, err
	}
	var swapped bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := tx.Bucket([]byte(boltMetaBucket))
		cur, err := parseHead(string(b.Get([]byte(boltHeadKey))))
		if err != nil {
			return err
		}
		if cur != expected {
			return nil
		}
		swapped = true
		return b.Put([]byte(boltHeadKey), []byte(next.String()))
	})
	return swapped && err == nil, err
}

// Close shuts down the bolt database.
func (s *BoltStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
