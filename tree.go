package iavl

import (
	"bytes"
	"context"
	"encoding/hex"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/merkle"
)

// DefaultCacheSize is the number of nodes cached when Options names neither
// a cache nor a size.
const DefaultCacheSize = 10_000

// Options control how a tree is cached and logged.
type Options struct {
	// NodeCache caches deserialized nodes and may be shared by trees
	// stored in the same byte store. If nil, a cache of CacheSize nodes is
	// created.
	NodeCache NodeCache

	// CacheSize is the capacity of the created node cache. 0 means
	// DefaultCacheSize; a negative size panics.
	CacheSize int

	// Logger receives commit and corruption events. Defaults to a no-op
	// logger.
	Logger *zap.Logger
}

// MutableTree is a versioned Merkle AVL tree. Writes go to a working tree
// that is copy-on-write against the last saved version, and SaveVersion
// persists them as the next version.
//
// Methods are safe for concurrent use, though writers are serialized.
// Iterators over the working tree are invalidated by writes; concurrent
// readers of a stable version should use GetImmutable.
type MutableTree struct {
	mu       sync.RWMutex
	ndb      *nodeDB
	logger   *zap.Logger
	root     *node
	version  uint64
	lastHash []byte
}

// NewMutableTree returns an empty tree at version 0 that stores its nodes
// in db. Call Load or LoadVersion to resume a tree saved earlier.
func NewMutableTree(db kv.Store, opts *Options) *MutableTree {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := opts.NodeCache
	if cache == nil {
		size := opts.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		cache = NewNodeCache(size)
	}
	return &MutableTree{
		ndb:      newNodeDB(db, cache, logger),
		logger:   logger,
		lastHash: merkle.EmptyHash(),
	}
}

// Load resumes the latest saved version, if any, discarding unsaved
// changes. It returns the loaded version, 0 for a store that has none.
func (t *MutableTree) Load(ctx context.Context) (uint64, error) {
	versions, err := t.ndb.Versions(ctx)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.root, t.version, t.lastHash = nil, 0, merkle.EmptyHash()
		return 0, nil
	}
	latest := versions[len(versions)-1]
	return latest, t.LoadVersion(ctx, latest)
}

// LoadVersion resets the working tree to the given saved version. Saving
// afterwards creates version+1, which fails with ErrVersionExists if that
// version was saved with a different root.
func (t *MutableTree) LoadVersion(ctx context.Context, version uint64) error {
	root, hash, err := t.ndb.loadRoot(ctx, version)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root, t.version, t.lastHash = root, version, hash
	return nil
}

// Get returns a copy of the working value of key, or nil if it is not
// set.
func (t *MutableTree) Get(ctx context.Context, key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nil {
		return nil, nil
	}
	return t.root.get(ctx, t.ndb, key)
}

// Has reports whether key is set in the working tree.
func (t *MutableTree) Has(ctx context.Context, key []byte) (bool, error) {
	value, err := t.Get(ctx, key)
	return value != nil, err
}

// Set sets key to value in the working tree and returns the value it
// replaced. A nil value is stored as an empty one. Both arguments are
// copied.
func (t *MutableTree) Set(ctx context.Context, key, value []byte) (old []byte, updated bool, err error) {
	key = append([]byte{}, key...)
	value = append([]byte{}, value...)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.root == nil {
		t.root = newLeaf(key, value)
		return nil, false, nil
	}
	root, old, updated, err := t.root.set(ctx, t.ndb, key, value)
	if err != nil {
		return nil, false, errors.Wrapf(err, "set %x", key)
	}
	t.root = root
	if updated {
		old = append([]byte{}, old...)
	}
	return old, updated, nil
}

// Remove removes key from the working tree and returns its value.
func (t *MutableTree) Remove(ctx context.Context, key []byte) (old []byte, removed bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.root == nil {
		return nil, false, nil
	}
	root, _, old, removed, err := t.root.remove(ctx, t.ndb, key)
	if err != nil {
		return nil, false, errors.Wrapf(err, "remove %x", key)
	}
	if removed {
		t.root = root
		old = append([]byte{}, old...)
	}
	return old, removed, nil
}

// SaveVersion persists the working tree as the next version and returns
// its root hash. Saving an unchanged tree still creates a new version,
// with the same hash as the previous one.
func (t *MutableTree) SaveVersion(ctx context.Context) ([]byte, uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.version == math.MaxUint64 {
		t.logger.Error("tree version overflow", zap.Uint64("version", t.version))
		panic(&OverflowError{Version: t.version})
	}
	version := t.version + 1
	hash := merkle.EmptyHash()
	if t.root != nil {
		var err error
		hash, err = t.ndb.saveBranch(ctx, t.root)
		if err != nil {
			return nil, 0, errors.Wrapf(err, "save version %d", version)
		}
	}
	existing, err := t.ndb.GetRoot(ctx, version)
	if err != nil {
		return nil, 0, err
	}
	switch {
	case existing == nil:
		if err := t.ndb.SaveRoot(ctx, version, hash); err != nil {
			return nil, 0, err
		}
	case !bytes.Equal(existing, hash):
		return nil, 0, errors.Wrapf(ErrVersionExists, "version %d", version)
	}
	t.version, t.lastHash = version, hash
	t.logger.Debug("saved version",
		zap.Uint64("version", version),
		zap.String("hash", hex.EncodeToString(hash)),
		zap.Uint64("size", t.size()))
	return hash, version, nil
}

// GetImmutable returns a read-only view of a saved version, usable
// concurrently with writes to this tree.
func (t *MutableTree) GetImmutable(ctx context.Context, version uint64) (*ImmutableTree, error) {
	root, hash, err := t.ndb.loadRoot(ctx, version)
	if err != nil {
		return nil, err
	}
	return &ImmutableTree{ndb: t.ndb, root: root, version: version, hash: hash}, nil
}

// Versions returns the saved versions in ascending order.
func (t *MutableTree) Versions(ctx context.Context) ([]uint64, error) {
	return t.ndb.Versions(ctx)
}

// VersionExists reports whether version is saved.
func (t *MutableTree) VersionExists(ctx context.Context, version uint64) (bool, error) {
	hash, err := t.ndb.GetRoot(ctx, version)
	return hash != nil, err
}

// DeleteVersion forgets a saved version other than the current one. Nodes
// are left in place since other versions may share them.
func (t *MutableTree) DeleteVersion(ctx context.Context, version uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version == t.version {
		return errors.Errorf("cannot delete current version %d", version)
	}
	hash, err := t.ndb.GetRoot(ctx, version)
	if err != nil {
		return err
	}
	if hash == nil {
		return errors.Wrapf(ErrVersionNotFound, "version %d", version)
	}
	return t.ndb.DeleteRoot(ctx, version)
}

// Iterator returns an iterator over the working tree's entries within
// bounds, descending if reverse is set. It must not be used after the
// tree is next written.
func (t *MutableTree) Iterator(ctx context.Context, bounds kv.Bounds, reverse bool) *Iterator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return newIterator(ctx, t.ndb, t.root, bounds, reverse)
}

// Version returns the last saved (or loaded) version.
func (t *MutableTree) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Hash returns the root hash of the last saved (or loaded) version.
func (t *MutableTree) Hash() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastHash
}

// Size returns the number of entries in the working tree.
func (t *MutableTree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size()
}

func (t *MutableTree) size() uint64 {
	if t.root == nil {
		return 0
	}
	return t.root.size
}

// Height returns the height of the working tree; a single leaf has
// height 0.
func (t *MutableTree) Height() uint8 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.root == nil {
		return 0
	}
	return t.root.height
}
