// Package bolt stores entries in a single bucket of a bbolt database.
package bolt

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/jrhy/iavl/kv"
)

var bucketName = []byte("iavl")

// iteratorBatch is how many entries an iterator reads per transaction.
const iteratorBatch = 256

// Options tune the underlying database.
type Options struct {
	// NoSync skips fsync after each write, for tests.
	NoSync bool
	// Timeout bounds the wait for the file lock. 0 means 10 seconds.
	Timeout time.Duration
}

// Store implements kv.Store. Each write is its own transaction.
type Store struct {
	db *bbolt.DB
}

var _ kv.Store = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opts.Timeout != 0 {
		bopt.Timeout = opts.Timeout
	}
	if opts.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}
	db, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, kv.ErrEmptyKey
	}
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(key); v != nil {
			value = append([]byte{}, v...)
		}
		return nil
	})
	return value, err
}

func (s *Store) Put(ctx context.Context, key, value []byte) error {
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, value)
	})
}

func (s *Store) Delete(ctx context.Context, key []byte) error {
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

func (s *Store) Iterator(ctx context.Context) kv.Iterator {
	return s.PrefixIterator(ctx, nil)
}

// PrefixIterator reads entries in batches, each in a short read
// transaction, so that writes may proceed between calls to Next. Entries
// written behind the iterator's position are not seen.
func (s *Store) PrefixIterator(ctx context.Context, prefix []byte) kv.Iterator {
	return &iterator{db: s.db, prefix: append([]byte{}, prefix...)}
}

type iterator struct {
	db      *bbolt.DB
	prefix  []byte
	last    []byte
	batch   [][2][]byte
	done    bool
	current [2][]byte
	err     error
}

func (it *iterator) fill() error {
	return it.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		var k, v []byte
		if it.last == nil {
			k, v = c.Seek(it.prefix)
		} else {
			k, v = c.Seek(it.last)
			if bytes.Equal(k, it.last) {
				k, v = c.Next()
			}
		}
		for ; k != nil && bytes.HasPrefix(k, it.prefix); k, v = c.Next() {
			if len(it.batch) == iteratorBatch {
				return nil
			}
			it.batch = append(it.batch, [2][]byte{
				append([]byte{}, k...),
				append([]byte{}, v...),
			})
		}
		it.done = true
		return nil
	})
}

func (it *iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if len(it.batch) == 0 && !it.done {
		if it.err = it.fill(); it.err != nil {
			it.err = errors.Wrap(it.err, "scan")
			return false
		}
	}
	if len(it.batch) == 0 {
		it.current = [2][]byte{}
		return false
	}
	it.current, it.batch = it.batch[0], it.batch[1:]
	it.last = it.current[0]
	return true
}

func (it *iterator) Key() []byte   { return it.current[0] }
func (it *iterator) Value() []byte { return it.current[1] }
func (it *iterator) Err() error    { return it.err }

func (it *iterator) Close() error {
	it.batch, it.done = nil, true
	return nil
}
