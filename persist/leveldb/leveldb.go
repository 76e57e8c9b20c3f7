// Package leveldb stores entries in a goleveldb database.
package leveldb

import (
	"context"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/jrhy/iavl/kv"
)

// Store implements kv.Store. Iterators read from an implicit snapshot
// taken when they are created.
type Store struct {
	db *leveldb.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens or creates the database in the directory at path.
func Open(path string, o *opt.Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &Store{db: db}, nil
}

// New opens a database over arbitrary storage, such as
// storage.NewMemStorage().
func New(stor storage.Storage, o *opt.Options) (*Store, error) {
	db, err := leveldb.Open(stor, o)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %x", key)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	return errors.Wrapf(s.db.Put(key, value, nil), "put %x", key)
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	return errors.Wrapf(s.db.Delete(key, nil), "delete %x", key)
}

func (s *Store) Iterator(ctx context.Context) kv.Iterator {
	return kv.NewLevelIterator(s.db.NewIterator(nil, nil), false)
}

func (s *Store) PrefixIterator(ctx context.Context, prefix []byte) kv.Iterator {
	return kv.NewLevelIterator(s.db.NewIterator(kv.LevelRange(kv.Prefix(prefix)), nil), false)
}
