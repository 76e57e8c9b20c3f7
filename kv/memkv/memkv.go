// Package memkv is an in-memory kv.Store, usually for testing and for
// trees that do not need to outlive the process.
package memkv

import (
	"context"

	"github.com/syndtr/goleveldb/leveldb/comparer"
	"github.com/syndtr/goleveldb/leveldb/memdb"

	"github.com/jrhy/iavl/kv"
)

// Store keeps entries in a goleveldb skiplist, which keeps them ordered
// and is safe for concurrent use.
type Store struct {
	db *memdb.DB
}

var _ kv.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{db: memdb.New(comparer.DefaultComparer, 0)}
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := s.db.Get(key)
	if err == memdb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return append([]byte{}, value...), nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	return s.db.Put(key, value)
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	err := s.db.Delete(key)
	if err == memdb.ErrNotFound {
		return nil
	}
	return err
}

func (s *Store) Iterator(ctx context.Context) kv.Iterator {
	return kv.NewLevelIterator(s.db.NewIterator(nil), false)
}

func (s *Store) PrefixIterator(ctx context.Context, prefix []byte) kv.Iterator {
	return kv.NewLevelIterator(s.db.NewIterator(kv.LevelRange(kv.Prefix(prefix))), false)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return s.db.Len()
}
