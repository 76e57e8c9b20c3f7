package iavl

import (
	"bytes"
	"context"

	"github.com/jrhy/iavl/kv"
)

// Iterator walks a tree's entries within a key range, ascending or
// descending. Subtrees that cannot intersect the range are never loaded.
// It implements kv.Iterator.
type Iterator struct {
	ctx     context.Context
	ndb     *nodeDB
	bounds  kv.Bounds
	reverse bool
	stack   nodeStack

	key, value []byte
	err        error
}

var _ kv.Iterator = (*Iterator)(nil)

func newIterator(ctx context.Context, ndb *nodeDB, root *node, bounds kv.Bounds, reverse bool) *Iterator {
	it := &Iterator{ctx: ctx, ndb: ndb, bounds: bounds, reverse: reverse}
	if root != nil {
		it.stack.push(root)
	}
	return it
}

type nodeStack struct {
	things []*node
}

func (stack *nodeStack) pop() *node {
	if len(stack.things) == 0 {
		return nil
	}
	popped := stack.things[len(stack.things)-1]
	stack.things = stack.things[:len(stack.things)-1]
	return popped
}

func (stack *nodeStack) push(n *node) {
	stack.things = append(stack.things, n)
}

// leftInRange reports whether the keys below separator can reach the
// lower bound.
func (it *Iterator) leftInRange(separator []byte) bool {
	return it.bounds.Lower.Kind == kv.Unbounded ||
		bytes.Compare(it.bounds.Lower.Key, separator) < 0
}

// rightInRange reports whether separator, the smallest key on the right,
// is within the upper bound.
func (it *Iterator) rightInRange(separator []byte) bool {
	switch it.bounds.Upper.Kind {
	case kv.Inclusive:
		return bytes.Compare(separator, it.bounds.Upper.Key) <= 0
	case kv.Exclusive:
		return bytes.Compare(separator, it.bounds.Upper.Key) < 0
	}
	return true
}

func (it *Iterator) pushChildren(n *node) error {
	var left, right *node
	var err error
	if it.leftInRange(n.key) {
		if left, err = n.leftNode(it.ctx, it.ndb); err != nil {
			return err
		}
	}
	if it.rightInRange(n.key) {
		if right, err = n.rightNode(it.ctx, it.ndb); err != nil {
			return err
		}
	}
	first, second := left, right
	if it.reverse {
		first, second = right, left
	}
	// pushed in reverse of visiting order
	if second != nil {
		it.stack.push(second)
	}
	if first != nil {
		it.stack.push(first)
	}
	return nil
}

// Next advances to the next entry in range, returning false when there
// are no more or an error occurred.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for n := it.stack.pop(); n != nil; n = it.stack.pop() {
		if n.isLeaf() {
			if it.bounds.Contains(n.key) {
				it.key, it.value = n.key, n.value
				return true
			}
			continue
		}
		if err := it.pushChildren(n); err != nil {
			it.err = err
			break
		}
	}
	it.key, it.value = nil, nil
	return false
}

// Key returns the current key. It must not be modified.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current value. It must not be modified.
func (it *Iterator) Value() []byte { return it.value }

func (it *Iterator) Err() error { return it.err }

// Close releases the iterator; Next returns false afterwards.
func (it *Iterator) Close() error {
	it.stack.things = nil
	it.key, it.value = nil, nil
	return nil
}
