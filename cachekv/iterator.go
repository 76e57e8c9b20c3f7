package cachekv

import (
	"bytes"

	"github.com/jrhy/iavl/kv"
)

// mergeIterator walks staged writes and a tree iterator together. Staged
// entries shadow the tree's entry for the same key, and staged tombstones
// hide it.
type mergeIterator struct {
	staged  []entry // ascending; consumed from the end when reverse
	tree    kv.Iterator
	reverse bool

	started          bool
	treeOK           bool
	treeKey, treeVal []byte

	key, value []byte
	err        error
}

func newMergeIterator(staged []entry, tree kv.Iterator, reverse bool) *mergeIterator {
	return &mergeIterator{staged: staged, tree: tree, reverse: reverse}
}

func (it *mergeIterator) advanceTree() {
	it.treeOK = it.tree.Next()
	if it.treeOK {
		it.treeKey, it.treeVal = it.tree.Key(), it.tree.Value()
	} else if err := it.tree.Err(); err != nil {
		it.err = err
	}
}

func (it *mergeIterator) peekStaged() *entry {
	if len(it.staged) == 0 {
		return nil
	}
	if it.reverse {
		return &it.staged[len(it.staged)-1]
	}
	return &it.staged[0]
}

func (it *mergeIterator) popStaged() {
	if it.reverse {
		it.staged = it.staged[:len(it.staged)-1]
	} else {
		it.staged = it.staged[1:]
	}
}

func (it *mergeIterator) Next() bool {
	if !it.started {
		it.started = true
		it.advanceTree()
	}
	for it.err == nil {
		e := it.peekStaged()
		if e == nil && !it.treeOK {
			break
		}
		c := -1 // staged first
		if e == nil {
			c = 1
		} else if it.treeOK {
			c = bytes.Compare(e.key, it.treeKey)
			if it.reverse {
				c = -c
			}
		}
		if c > 0 {
			it.key, it.value = it.treeKey, it.treeVal
			it.advanceTree()
			return true
		}
		it.popStaged()
		if c == 0 {
			it.advanceTree()
		}
		if e.deleted {
			continue
		}
		it.key, it.value = e.key, e.value
		return true
	}
	it.key, it.value = nil, nil
	return false
}

func (it *mergeIterator) Key() []byte   { return it.key }
func (it *mergeIterator) Value() []byte { return it.value }
func (it *mergeIterator) Err() error    { return it.err }

func (it *mergeIterator) Close() error {
	it.staged, it.treeOK = nil, false
	return it.tree.Close()
}
