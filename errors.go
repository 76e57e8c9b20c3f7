package iavl

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrVersionNotFound is returned when asking for a version that was
	// never saved or has since been deleted.
	ErrVersionNotFound = errors.New("version not found")

	// ErrVersionExists is returned by SaveVersion when the next version
	// number was already saved with a different root, which happens when
	// a tree is reloaded at an older version and then diverges.
	ErrVersionExists = errors.New("version already exists with a different root")
)

// CorruptionError is the panic value used when the node store is found to
// be inconsistent: a referenced node is missing, or its bytes do not decode
// to a node with the expected hash. Nothing in this package recovers from
// it; continuing would risk computing a wrong app hash.
type CorruptionError struct {
	Hash []byte
	Msg  string
	Err  error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node store corrupt: node %x: %s: %v", e.Hash, e.Msg, e.Err)
	}
	return fmt.Sprintf("node store corrupt: node %x: %s", e.Hash, e.Msg)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// OverflowError is the panic value used when a version counter would wrap.
type OverflowError struct {
	Version uint64
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("version counter overflow after version %d", e.Version)
}
