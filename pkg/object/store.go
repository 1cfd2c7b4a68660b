package object

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxObjectSize is the payload ceiling used when none is configured.
const DefaultMaxObjectSize int64 = 100 << 20

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
//
// Each file holds the zstd-compressed envelope "type len\0content". The id
// is always computed over the uncompressed envelope, so compression is a
// storage detail invisible to callers.
type Store struct {
	root    string
	maxSize int64
	algo    HashAlgorithm
}

// Option configures a Store.
type Option func(*Store)

// WithMaxObjectSize sets the payload ceiling enforced by Write. Values <= 0
// keep the default.
func WithMaxObjectSize(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithHashAlgorithm selects the digest used for object ids.
func WithHashAlgorithm(a HashAlgorithm) Option {
	return func(s *Store) {
		if a != "" {
			s.algo = a
		}
	}
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string, opts ...Option) *Store {
	s := &Store{root: root, maxSize: DefaultMaxObjectSize, algo: SHA256}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenStore is NewStore for an existing repository: the root must already be
// a readable directory.
func OpenStore(root string, opts ...Option) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w: %v", root, ErrInvalidRepository, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open store %s: %w: not a directory", root, ErrInvalidRepository)
	}
	return NewStore(root, opts...), nil
}

// Algorithm returns the digest algorithm used for ids.
func (s *Store) Algorithm() HashAlgorithm { return s.algo }

// MaxObjectSize returns the configured payload ceiling.
func (s *Store) MaxObjectSize() int64 { return s.maxSize }

// Hash computes the id data would be stored under without writing it.
func (s *Store) Hash(objType ObjectType, data []byte) Hash {
	return s.algo.HashObject(objType, data)
}

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(string(h)) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Write stores an object and returns its content hash. Writing content that
// is already present is a no-op. Writes are atomic: data is written to a
// temp file and then renamed into place, so readers never observe a
// partial object.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	if _, err := ParseObjectType(string(objType)); err != nil {
		return "", fmt.Errorf("object write: %w", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", fmt.Errorf("object write %s: %w (%d bytes, limit %d)", objType, ErrObjectTooLarge, len(data), s.maxSize)
	}

	h := s.algo.HashObject(objType, data)

	// Fast path: already exists.
	if s.Has(h) {
		return h, nil
	}

	raw := append(envelopeHeader(objType, len(data)), data...)
	enc, _, err := zstdCodecs()
	if err != nil {
		return "", fmt.Errorf("object write: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	// A concurrent writer of the same content may win the rename; both
	// files hold identical bytes so either outcome is correct.
	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// The content is re-hashed on every read; a mismatch yields a
// *CorruptObjectError.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !ValidHash(string(h)) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrObjectNotFound)
	}
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrObjectNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	_, dec, err := zstdCodecs()
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Reason: "decompress: " + err.Error()}
	}

	objType, content, err := parseEnvelope(raw)
	if err != nil {
		return "", nil, &CorruptObjectError{Hash: h, Reason: err.Error()}
	}
	if actual := s.algo.HashObject(objType, content); actual != h {
		return "", nil, &CorruptObjectError{Hash: h, Actual: actual}
	}
	return objType, content, nil
}

// parseEnvelope splits "type len\0content".
func parseEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("invalid format (no NUL)")
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typ, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("invalid header %q", header)
	}
	objType, err := ParseObjectType(typ)
	if err != nil {
		return "", nil, err
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid length %q: %w", lenStr, err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("length mismatch (header=%d, actual=%d)", length, len(content))
	}
	return objType, content, nil
}

// List returns every stored object hash in ascending order. Temporary files
// left behind by interrupted writes are skipped.
func (s *Store) List() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanout, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list objects: %w", err)
	}

	var out []Hash
	for _, d := range fanout {
		if !d.IsDir() || len(d.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(objectsDir, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("list objects %s: %w", d.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), ".tmp-") {
				continue
			}
			h := d.Name() + f.Name()
			if ValidHash(h) {
				out = append(out, Hash(h))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Count returns the number of stored objects.
func (s *Store) Count() (int, error) {
	hashes, err := s.List()
	if err != nil {
		return 0, err
	}
	return len(hashes), nil
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

// zstdCodecs returns process-wide codecs. EncodeAll and DecodeAll are safe
// for concurrent use.
func zstdCodecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil)
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil)
	})
	return zstdEnc, zstdDec, zstdErr
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, b.Data)
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	data, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return &Blob{Data: data}, nil
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", fmt.Errorf("object write tree: %w", err)
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	data, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	tr, err := UnmarshalTree(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return tr, nil
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	data, err := MarshalCommit(c)
	if err != nil {
		return "", fmt.Errorf("object write commit: %w", err)
	}
	return s.Write(TypeCommit, data)
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	data, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	c, err := UnmarshalCommit(data)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", h, err)
	}
	return c, nil
}

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return data, nil
}
