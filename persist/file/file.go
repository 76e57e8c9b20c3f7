package file

import (
	"bytes"
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/blake2b-simd"
	"github.com/pkg/errors"

	"github.com/jrhy/iavl/kv"
)

const checksumSize = 32

// Store implements kv.Store with one file per key in a single directory.
// File names are the hex-encoded keys, so a directory listing is already
// in key order. Each file holds a checksum of its key and value followed
// by the value; a file that fails its checksum is reported as an error
// rather than returned.
type Store struct {
	basepath string
}

var _ kv.Store = Store{}

// NewStoreForPath returns a Store that keeps its entries as files in the
// directory at the given path, which must exist.
//
//	s := NewStoreForPath("/var/db/state")
//	value, err := s.Get(ctx, []byte("r\x01"))
func NewStoreForPath(path string) Store {
	return Store{path}
}

func checksum(key, value []byte) [checksumSize]byte {
	return blake2b.Sum256(append(append([]byte{}, key...), value...))
}

func (s Store) path(key []byte) string {
	return filepath.Join(s.basepath, hex.EncodeToString(key))
}

// Get returns the value in the file named for key, or nil if there is no
// such file.
func (s Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, kv.ErrEmptyKey
	}
	return s.load(key)
}

func (s Store) load(key []byte) ([]byte, error) {
	buf, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %x", key)
	}
	if len(buf) < checksumSize {
		return nil, errors.Errorf("entry %x truncated", key)
	}
	value := buf[checksumSize:]
	sum := checksum(key, value)
	if !bytes.Equal(sum[:], buf[:checksumSize]) {
		return nil, errors.Errorf("entry %x fails checksum", key)
	}
	return value, nil
}

// Put writes value to a temporary file and renames it into place, so
// readers see either the old or the new value.
func (s Store) Put(ctx context.Context, key, value []byte) error {
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}
	f, err := os.CreateTemp(s.basepath, ".put-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	sum := checksum(key, value)
	_, err = f.Write(append(sum[:], value...))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(f.Name(), s.path(key))
	}
	if err != nil {
		os.Remove(f.Name())
		return errors.Wrapf(err, "write %x", key)
	}
	return nil
}

func (s Store) Delete(ctx context.Context, key []byte) error {
	if len(key) == 0 {
		return kv.ErrEmptyKey
	}
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %x", key)
	}
	return nil
}

func (s Store) Iterator(ctx context.Context) kv.Iterator {
	return s.PrefixIterator(ctx, nil)
}

// PrefixIterator lists the directory once and reads each value as the
// iterator reaches it. Entries deleted in the meantime are skipped.
func (s Store) PrefixIterator(ctx context.Context, prefix []byte) kv.Iterator {
	entries, err := os.ReadDir(s.basepath)
	if err != nil {
		return kv.ErrIterator(errors.Wrapf(err, "list %s", s.basepath))
	}
	hexPrefix := hex.EncodeToString(prefix)
	var keys [][]byte
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, hexPrefix) {
			continue
		}
		key, err := hex.DecodeString(name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return &iterator{store: s, keys: keys}
}

type iterator struct {
	store      Store
	keys       [][]byte
	key, value []byte
	err        error
}

func (it *iterator) Next() bool {
	for it.err == nil && len(it.keys) > 0 {
		key := it.keys[0]
		it.keys = it.keys[1:]
		value, err := it.store.load(key)
		if err != nil {
			it.err = err
			break
		}
		if value != nil {
			it.key, it.value = key, value
			return true
		}
	}
	it.key, it.value = nil, nil
	return false
}

func (it *iterator) Key() []byte   { return it.key }
func (it *iterator) Value() []byte { return it.value }
func (it *iterator) Err() error    { return it.err }

func (it *iterator) Close() error {
	it.keys = nil
	return nil
}
