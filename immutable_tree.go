package iavl

import (
	"context"

	"github.com/jrhy/iavl/kv"
)

// ImmutableTree is a read-only snapshot of one saved version. Its nodes
// are never modified, so it may be read from any number of goroutines.
type ImmutableTree struct {
	ndb     *nodeDB
	root    *node
	version uint64
	hash    []byte
}

// Get returns a copy of the value of key, or nil if it is not set.
func (t *ImmutableTree) Get(ctx context.Context, key []byte) ([]byte, error) {
	if t.root == nil {
		return nil, nil
	}
	return t.root.get(ctx, t.ndb, key)
}

func (t *ImmutableTree) Has(ctx context.Context, key []byte) (bool, error) {
	value, err := t.Get(ctx, key)
	return value != nil, err
}

func (t *ImmutableTree) Iterator(ctx context.Context, bounds kv.Bounds, reverse bool) *Iterator {
	return newIterator(ctx, t.ndb, t.root, bounds, reverse)
}

func (t *ImmutableTree) Version() uint64 { return t.version }

func (t *ImmutableTree) Hash() []byte { return t.hash }

func (t *ImmutableTree) Size() uint64 {
	if t.root == nil {
		return 0
	}
	return t.root.size
}

func (t *ImmutableTree) Height() uint8 {
	if t.root == nil {
		return 0
	}
	return t.root.height
}
