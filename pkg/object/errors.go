package object

import (
	"errors"
	"fmt"
)

var (
	ErrObjectNotFound    = errors.New("object not found")
	ErrObjectTooLarge    = errors.New("object too large")
	ErrCorruptObject     = errors.New("corrupt object")
	ErrInvalidRepository = errors.New("invalid repository")
)

// CorruptObjectError reports an object whose stored bytes do not hash back to
// its id or cannot be decoded. It is never retried.
type CorruptObjectError struct {
	Hash   Hash
	Actual Hash // recomputed digest, empty when the envelope could not be parsed
	Reason string
}

func (e *CorruptObjectError) Error() string {
	if e.Actual != "" {
		return fmt.Sprintf("object %s: %s: hash mismatch (computed %s)", e.Hash, ErrCorruptObject, e.Actual)
	}
	return fmt.Sprintf("object %s: %s: %s", e.Hash, ErrCorruptObject, e.Reason)
}

func (e *CorruptObjectError) Is(target error) bool {
	return target == ErrCorruptObject
}
