package kv

import (
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelRange converts b into the [Start, Limit) form goleveldb iterators
// take. Exclusive lower and inclusive upper bounds use the key's immediate
// successor (the key with a zero byte appended).
func LevelRange(b Bounds) *util.Range {
	r := &util.Range{}
	switch b.Lower.Kind {
	case Inclusive:
		r.Start = append([]byte{}, b.Lower.Key...)
	case Exclusive:
		r.Start = successor(b.Lower.Key)
	}
	switch b.Upper.Kind {
	case Inclusive:
		r.Limit = successor(b.Upper.Key)
	case Exclusive:
		// non-nil even when empty; nil would mean unbounded
		r.Limit = append([]byte{}, b.Upper.Key...)
	}
	return r
}

func successor(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

type levelIterator struct {
	it      iterator.Iterator
	reverse bool
	started bool
}

// NewLevelIterator adapts a goleveldb iterator. The returned iterator owns
// it and releases it on Close.
func NewLevelIterator(it iterator.Iterator, reverse bool) Iterator {
	return &levelIterator{it: it, reverse: reverse}
}

func (i *levelIterator) Next() bool {
	if !i.started {
		i.started = true
		if i.reverse {
			return i.it.Last()
		}
		return i.it.First()
	}
	if i.reverse {
		return i.it.Prev()
	}
	return i.it.Next()
}

// goleveldb reuses its buffers between steps, so both accessors copy.
func (i *levelIterator) Key() []byte {
	return append([]byte(nil), i.it.Key()...)
}

func (i *levelIterator) Value() []byte {
	return append([]byte{}, i.it.Value()...)
}

func (i *levelIterator) Err() error {
	return i.it.Error()
}

func (i *levelIterator) Close() error {
	i.it.Release()
	return nil
}
