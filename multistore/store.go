// Package multistore commits a fixed set of named stores together,
// combining their root hashes into one commit hash per version.
package multistore

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jrhy/iavl"
	"github.com/jrhy/iavl/cachekv"
	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/merkle"
	"github.com/jrhy/iavl/persist"
	"github.com/jrhy/iavl/prefix"
)

var (
	// ErrUnknownStore is returned when naming a store that was not
	// configured.
	ErrUnknownStore = errors.New("unknown store")

	// ErrNoStores is returned when configuring a Store without any
	// sub-stores.
	ErrNoStores = errors.New("no stores configured")
)

// Layout of the byte store: sub-store trees under 's', commit metadata
// under 'm'.
const (
	storesPrefix  = 's'
	metaPrefix    = 'm'
	latestKey     = "latest"
	commitsPrefix = "c"
)

// StoreInfo is one sub-store's part of a commit.
type StoreInfo struct {
	Name string `msgpack:"name"`

	// Version of the sub-store's tree, which differs from the commit
	// version for stores added after the first commit.
	Version uint64 `msgpack:"version"`
	Hash    []byte `msgpack:"hash"`
}

// CommitInfo records a commit. Stores are sorted by name.
type CommitInfo struct {
	Version uint64      `msgpack:"version"`
	Hash    []byte      `msgpack:"hash"`
	Stores  []StoreInfo `msgpack:"stores"`
}

// CommitID identifies a commit.
type CommitID struct {
	Version uint64
	Hash    []byte
}

// CommitID returns the version and hash of the commit.
func (ci CommitInfo) CommitID() CommitID {
	return CommitID{ci.Version, ci.Hash}
}

func (ci CommitInfo) store(name string) (StoreInfo, bool) {
	i := sort.Search(len(ci.Stores), func(i int) bool { return ci.Stores[i].Name >= name })
	if i < len(ci.Stores) && ci.Stores[i].Name == name {
		return ci.Stores[i], true
	}
	return StoreInfo{}, false
}

// encode is the leaf preimage of a store info in the commit hash. The
// tree version is left out so that only contents are committed to.
func (si StoreInfo) encode() []byte {
	buf := protowire.AppendBytes(nil, []byte(si.Name))
	return protowire.AppendBytes(buf, si.Hash)
}

// hashStoreInfos combines sorted store infos into the commit hash.
func hashStoreInfos(infos []StoreInfo) []byte {
	items := make([][]byte, len(infos))
	for i, si := range infos {
		items[i] = si.encode()
	}
	return merkle.RootHash(items)
}

// Options control caching and logging.
type Options struct {
	// CacheSize is the node cache capacity of each sub-store's tree. 0
	// means iavl.DefaultCacheSize; a negative size panics.
	CacheSize int

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Store holds the named sub-stores.
type Store struct {
	db     kv.Store
	meta   prefix.Store
	names  []string
	stores map[string]*cachekv.Store
	last   CommitInfo
	logger *zap.Logger
}

func validateNames(names []string) error {
	if len(names) == 0 {
		return ErrNoStores
	}
	seen := map[string]bool{}
	for _, name := range names {
		if name == "" {
			return errors.New("empty store name")
		}
		if seen[name] {
			return errors.Errorf("duplicate store %q", name)
		}
		seen[name] = true
	}
	return nil
}

// namespace is length-prefixed so that no store's namespace is a prefix
// of another's.
func namespace(name string) []byte {
	return protowire.AppendBytes([]byte{storesPrefix}, []byte(name))
}

func commitKey(version uint64) []byte {
	return binary.AppendUvarint([]byte(commitsPrefix), version)
}

// New opens the named stores in db, resuming from the latest commit if
// there is one.
func New(ctx context.Context, db kv.Store, names []string, opts *Options) (*Store, error) {
	if err := validateNames(names); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		db:     db,
		meta:   prefix.New(db, []byte{metaPrefix}),
		names:  append([]string{}, names...),
		stores: make(map[string]*cachekv.Store, len(names)),
		logger: logger,
	}
	sort.Strings(s.names)

	latest, err := s.latestVersion(ctx)
	if err != nil {
		return nil, err
	}
	if latest != 0 {
		if s.last, err = s.CommitInfo(ctx, latest); err != nil {
			return nil, err
		}
	}
	for _, name := range s.names {
		tree := iavl.NewMutableTree(prefix.New(db, namespace(name)), &iavl.Options{
			CacheSize: opts.CacheSize,
			Logger:    logger.With(zap.String("store", name)),
		})
		if si, ok := s.last.store(name); ok {
			if err := tree.LoadVersion(ctx, si.Version); err != nil {
				return nil, errors.Wrapf(err, "load store %s", name)
			}
		} else if _, err := tree.Load(ctx); err != nil {
			return nil, errors.Wrapf(err, "load store %s", name)
		}
		s.stores[name] = cachekv.New(tree, &cachekv.Options{Logger: logger.With(zap.String("store", name))})
	}
	for _, si := range s.last.Stores {
		if _, ok := s.stores[si.Name]; !ok {
			logger.Warn("committed store is no longer configured", zap.String("store", si.Name))
		}
	}
	return s, nil
}

// Open opens the byte store cfg names and the stores within it. The
// returned function releases the byte store.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*Store, func() error, error) {
	db, closer, err := persist.Open(cfg.Backend)
	if err != nil {
		return nil, nil, err
	}
	s, err := New(ctx, db, cfg.Stores, &Options{CacheSize: cfg.CacheSize, Logger: logger})
	if err != nil {
		closer()
		return nil, nil, err
	}
	return s, closer, nil
}

func (s *Store) latestVersion(ctx context.Context) (uint64, error) {
	buf, err := s.meta.Get(ctx, []byte(latestKey))
	if err != nil {
		return 0, errors.Wrap(err, "load latest version")
	}
	if buf == nil {
		return 0, nil
	}
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, errors.Errorf("malformed latest version %x", buf)
	}
	return v, nil
}

// Names returns the sub-store names in commit order.
func (s *Store) Names() []string {
	return append([]string{}, s.names...)
}

// GetStore returns the named sub-store.
func (s *Store) GetStore(name string) (*cachekv.Store, error) {
	store, ok := s.stores[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStore, "%q", name)
	}
	return store, nil
}

func (s *Store) each(f func(*cachekv.Store) error) error {
	for _, name := range s.names {
		if err := f(s.stores[name]); err != nil {
			return errors.Wrapf(err, "store %s", name)
		}
	}
	return nil
}

// BeginTx opens a transaction in every sub-store.
func (s *Store) BeginTx() error {
	return s.each((*cachekv.Store).BeginTx)
}

// WriteThenClearTx keeps every sub-store's transaction.
func (s *Store) WriteThenClearTx() error {
	return s.each((*cachekv.Store).WriteThenClearTx)
}

// ClearTx discards every sub-store's transaction.
func (s *Store) ClearTx() error {
	return s.each((*cachekv.Store).ClearTx)
}

// Commit commits every sub-store and records the combined commit as the
// next version. After an error, sub-stores committed before the failure
// have advanced without a commit record, and the Store should be
// abandoned and reopened.
func (s *Store) Commit(ctx context.Context) (CommitInfo, error) {
	if s.last.Version == math.MaxUint64 {
		s.logger.Error("commit version overflow", zap.Uint64("version", s.last.Version))
		panic(&iavl.OverflowError{Version: s.last.Version})
	}
	info := CommitInfo{
		Version: s.last.Version + 1,
		Stores:  make([]StoreInfo, 0, len(s.names)),
	}
	for _, name := range s.names {
		store := s.stores[name]
		hash, err := store.Commit(ctx)
		if err != nil {
			return CommitInfo{}, errors.Wrapf(err, "commit store %s", name)
		}
		info.Stores = append(info.Stores, StoreInfo{
			Name:    name,
			Version: store.Tree().Version(),
			Hash:    hash,
		})
	}
	info.Hash = hashStoreInfos(info.Stores)

	buf, err := msgpack.Marshal(&info)
	if err != nil {
		return CommitInfo{}, errors.Wrap(err, "encode commit info")
	}
	if err := s.meta.Put(ctx, commitKey(info.Version), buf); err != nil {
		return CommitInfo{}, errors.Wrap(err, "save commit info")
	}
	if err := s.meta.Put(ctx, []byte(latestKey), binary.AppendUvarint(nil, info.Version)); err != nil {
		return CommitInfo{}, errors.Wrap(err, "save latest version")
	}
	s.last = info
	s.logger.Debug("committed",
		zap.Uint64("version", info.Version),
		zap.String("hash", hex.EncodeToString(info.Hash)))
	return info, nil
}

// LastCommitID returns the latest commit, or version 0 with the empty
// hash before the first.
func (s *Store) LastCommitID() CommitID {
	if s.last.Version == 0 {
		return CommitID{0, merkle.EmptyHash()}
	}
	return s.last.CommitID()
}

// CommitInfo returns the record of a past commit.
func (s *Store) CommitInfo(ctx context.Context, version uint64) (CommitInfo, error) {
	buf, err := s.meta.Get(ctx, commitKey(version))
	if err != nil {
		return CommitInfo{}, errors.Wrapf(err, "load commit info %d", version)
	}
	if buf == nil {
		return CommitInfo{}, errors.Wrapf(iavl.ErrVersionNotFound, "commit %d", version)
	}
	var info CommitInfo
	if err := msgpack.Unmarshal(buf, &info); err != nil {
		return CommitInfo{}, errors.Wrapf(err, "decode commit info %d", version)
	}
	return info, nil
}

// Query reads key from the named store as of a past commit, bypassing
// any uncommitted writes.
func (s *Store) Query(ctx context.Context, name string, version uint64, key []byte) ([]byte, error) {
	store, err := s.GetStore(name)
	if err != nil {
		return nil, err
	}
	info, err := s.CommitInfo(ctx, version)
	if err != nil {
		return nil, err
	}
	si, ok := info.store(name)
	if !ok {
		return nil, errors.Wrapf(iavl.ErrVersionNotFound, "store %s in commit %d", name, version)
	}
	snapshot, err := store.Tree().GetImmutable(ctx, si.Version)
	if err != nil {
		return nil, err
	}
	return snapshot.Get(ctx, key)
}
