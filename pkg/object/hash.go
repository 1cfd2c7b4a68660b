package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// HashAlgorithm names the digest used to address objects in a repository.
type HashAlgorithm string

const (
	SHA256  HashAlgorithm = "sha256"
	BLAKE2b HashAlgorithm = "blake2b"
)

// ParseHashAlgorithm accepts the config spelling of an algorithm. The empty
// string selects SHA256.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch HashAlgorithm(s) {
	case "", SHA256:
		return SHA256, nil
	case BLAKE2b:
		return BLAKE2b, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm %q", s)
	}
}

func (a HashAlgorithm) newHash() hash.Hash {
	if a == BLAKE2b {
		// New256 only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	}
	return sha256.New()
}

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashObject computes the id of an object: the digest of the envelope
// "type len\0content", mirroring Git's object hashing.
func HashObject(objType ObjectType, data []byte) Hash {
	return SHA256.HashObject(objType, data)
}

// HashObject computes the envelope digest with algorithm a.
func (a HashAlgorithm) HashObject(objType ObjectType, data []byte) Hash {
	h := a.newHash()
	h.Write(envelopeHeader(objType, len(data)))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

func envelopeHeader(objType ObjectType, n int) []byte {
	header := make([]byte, 0, len(objType)+12)
	header = append(header, objType...)
	header = append(header, ' ')
	header = strconv.AppendInt(header, int64(n), 10)
	return append(header, 0)
}

// ValidHash reports whether s has the shape of an object id.
func ValidHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Short returns the first 8 characters of h for display.
func (h Hash) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}
