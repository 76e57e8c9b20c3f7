package cachekv

import (
	"bytes"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"

	"github.com/jrhy/iavl/kv"
)

// tier is one level of buffered writes: values set, and tombstones for
// keys deleted, since the tier was opened. A key is in at most one of the
// two.
type tier struct {
	sets    *memdb.DB
	deletes *memdb.DB
}

func newTier() *tier {
	return &tier{
		sets:    memdb.New(comparer.DefaultComparer, 0),
		deletes: memdb.New(comparer.DefaultComparer, 0),
	}
}

func (t *tier) set(key, value []byte) {
	// memdb only fails on allocation
	_ = t.sets.Put(key, value)
	_ = t.deletes.Delete(key)
}

func (t *tier) delete(key []byte) {
	_ = t.sets.Delete(key)
	_ = t.deletes.Put(key, nil)
}

// lookup reports whether the tier decides key, and if so its value, which
// is nil for a tombstone.
func (t *tier) lookup(key []byte) (value []byte, found bool) {
	if t.deletes.Contains(key) {
		return nil, true
	}
	value, err := t.sets.Get(key)
	if err != nil {
		return nil, false
	}
	return append([]byte{}, value...), true
}

func (t *tier) len() int {
	return t.sets.Len() + t.deletes.Len()
}

// writer receives a tier's writes when it is merged.
type writer interface {
	set(key, value []byte) error
	delete(key []byte) error
}

// merge applies src's sets, then its tombstones, to dst, each in
// ascending key order. Applying them in a canonical order makes the
// result depend only on src's contents, not on how they were written.
func merge(dst writer, src *tier) error {
	it := src.sets.NewIterator(nil)
	for it.Next() {
		if err := dst.set(it.Key(), it.Value()); err != nil {
			it.Release()
			return err
		}
	}
	it.Release()
	it = src.deletes.NewIterator(nil)
	defer it.Release()
	for it.Next() {
		if err := dst.delete(it.Key()); err != nil {
			return err
		}
	}
	return nil
}

// tierWriter merges into another tier.
type tierWriter struct{ *tier }

func (w tierWriter) set(key, value []byte) error {
	w.tier.set(key, value)
	return nil
}

func (w tierWriter) delete(key []byte) error {
	w.tier.delete(key)
	return nil
}

type entry struct {
	key, value []byte
	deleted    bool
}

// entries returns the tier's writes within bounds in ascending order.
func (t *tier) entries(bounds kv.Bounds) []entry {
	var sets, deletes []entry
	it := t.sets.NewIterator(kv.LevelRange(bounds))
	for it.Next() {
		sets = append(sets, entry{
			key:   append([]byte{}, it.Key()...),
			value: append([]byte{}, it.Value()...),
		})
	}
	it.Release()
	it = t.deletes.NewIterator(kv.LevelRange(bounds))
	for it.Next() {
		deletes = append(deletes, entry{key: append([]byte{}, it.Key()...), deleted: true})
	}
	it.Release()
	return overlay(sets, deletes)
}

// overlay combines two ascending entry lists into one, preferring upper's
// entry where both have the same key.
func overlay(upper, lower []entry) []entry {
	res := make([]entry, 0, len(upper)+len(lower))
	for len(upper) > 0 && len(lower) > 0 {
		switch c := bytes.Compare(upper[0].key, lower[0].key); {
		case c < 0:
			res, upper = append(res, upper[0]), upper[1:]
		case c > 0:
			res, lower = append(res, lower[0]), lower[1:]
		default:
			res, upper, lower = append(res, upper[0]), upper[1:], lower[1:]
		}
	}
	res = append(res, upper...)
	return append(res, lower...)
}
