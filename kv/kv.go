// Package kv defines the ordered byte store that trees and their
// metadata are persisted in, along with the key range types shared by
// every iterator in this module.
package kv

import (
	"bytes"
	"context"
	"errors"
)

// ErrEmptyKey is returned by stores that cannot represent a zero-length key.
var ErrEmptyKey = errors.New("empty key")

// Store is an ordered mapping of byte keys to byte values. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the value stored for key, or nil if there is none.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error
	// Iterator scans every entry in ascending key order.
	Iterator(ctx context.Context) Iterator
	// PrefixIterator scans, in ascending order, the entries whose keys
	// start with prefix.
	PrefixIterator(ctx context.Context, prefix []byte) Iterator
}

// Iterator is a one-shot cursor over entries in key order (or reverse key
// order, where an API says so). Call Next before reading the first entry;
// Key and Value are only valid after Next returned true.
//
//	it := store.PrefixIterator(ctx, p)
//	defer it.Close()
//	for it.Next() {
//		use(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	// Err reports the first error encountered, if any.
	Err() error
	Close() error
}

// BoundKind says how a Bound limits a range.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one end of a key range.
type Bound struct {
	Key  []byte
	Kind BoundKind
}

// Included returns a bound that admits key itself.
func Included(key []byte) Bound { return Bound{key, Inclusive} }

// Excluded returns a bound that stops just short of key.
func Excluded(key []byte) Bound { return Bound{key, Exclusive} }

// Bounds is a key range. The zero value covers every key.
type Bounds struct {
	Lower Bound
	Upper Bound
}

// All covers every key.
func All() Bounds { return Bounds{} }

// Between is shorthand for the common half-open range [lower, upper).
func Between(lower, upper []byte) Bounds {
	return Bounds{Included(lower), Excluded(upper)}
}

// Prefix covers exactly the keys that start with p.
func Prefix(p []byte) Bounds {
	return Bounds{Included(p), PrefixEndBound(p)}
}

// AboveLower reports whether key is not cut off by the lower bound.
func (b Bounds) AboveLower(key []byte) bool {
	switch b.Lower.Kind {
	case Inclusive:
		return bytes.Compare(key, b.Lower.Key) >= 0
	case Exclusive:
		return bytes.Compare(key, b.Lower.Key) > 0
	}
	return true
}

// BelowUpper reports whether key is not cut off by the upper bound.
func (b Bounds) BelowUpper(key []byte) bool {
	switch b.Upper.Kind {
	case Inclusive:
		return bytes.Compare(key, b.Upper.Key) <= 0
	case Exclusive:
		return bytes.Compare(key, b.Upper.Key) < 0
	}
	return true
}

// Contains reports whether key lies within both bounds.
func (b Bounds) Contains(key []byte) bool {
	return b.AboveLower(key) && b.BelowUpper(key)
}

// PrefixEndBound returns the exclusive upper bound of the keys starting with
// prefix: the prefix with trailing 0xFF bytes dropped and its last remaining
// byte incremented. A prefix made only of 0xFF bytes (or an empty one) has
// no upper bound.
func PrefixEndBound(prefix []byte) Bound {
	end := append([]byte(nil), prefix...)
	for len(end) > 0 {
		last := len(end) - 1
		if end[last] != 0xff {
			end[last]++
			return Excluded(end)
		}
		end = end[:last]
	}
	return Bound{}
}

type errIterator struct{ err error }

// ErrIterator returns an iterator that yields nothing and reports err.
func ErrIterator(err error) Iterator { return errIterator{err} }

func (errIterator) Next() bool { return false }
func (errIterator) Key() []byte { return nil }
func (errIterator) Value() []byte { return nil }
func (i errIterator) Err() error { return i.err }
func (errIterator) Close() error { return nil }
