// Package cachekv buffers writes to a tree in two tiers: one for the
// transaction in progress, which can be kept or discarded as a unit, and
// one for the block, which Commit applies to the tree in a canonical
// order and saves as a new version.
package cachekv

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jrhy/iavl"
	"github.com/jrhy/iavl/kv"
)

var (
	// ErrTxOpen is returned when starting a transaction, or committing,
	// while a transaction is open.
	ErrTxOpen = errors.New("transaction already open")

	// ErrNoTx is returned when ending a transaction that was not begun.
	ErrNoTx = errors.New("no transaction open")
)

// Options control logging.
type Options struct {
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Store reads through its tiers to a tree and buffers writes until
// Commit. It is safe for concurrent use, though it is meant to be driven
// by one goroutine at a time.
type Store struct {
	mu     sync.RWMutex
	tree   *iavl.MutableTree
	block  *tier
	tx     *tier // nil unless a transaction is open
	logger *zap.Logger
}

// New wraps tree, which should not be written to except through the
// returned Store.
func New(tree *iavl.MutableTree, opts *Options) *Store {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{tree: tree, block: newTier(), logger: logger}
}

// Tree returns the underlying tree, for historical queries.
func (s *Store) Tree() *iavl.MutableTree {
	return s.tree
}

func (s *Store) open() *tier {
	if s.tx != nil {
		return s.tx
	}
	return s.block
}

// Get returns the value visible for key: the transaction tier decides if
// it holds the key at all (a tombstone meaning absent), then the block
// tier, then the tree.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, key)
}

func (s *Store) get(ctx context.Context, key []byte) ([]byte, error) {
	for _, t := range []*tier{s.tx, s.block} {
		if t == nil {
			continue
		}
		if value, found := t.lookup(key); found {
			return value, nil
		}
	}
	return s.tree.Get(ctx, key)
}

func (s *Store) Has(ctx context.Context, key []byte) (bool, error) {
	value, err := s.Get(ctx, key)
	return value != nil, err
}

// Set stages key=value in the open tier. A nil value is stored as an
// empty one.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open().set(key, value)
	return nil
}

// Delete stages a tombstone for key in the open tier and returns the
// value that was visible before.
func (s *Store) Delete(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	s.open().delete(key)
	return old, nil
}

// BeginTx opens a transaction tier; writes go there until it is ended.
func (s *Store) BeginTx() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return ErrTxOpen
	}
	s.tx = newTier()
	return nil
}

// WriteThenClearTx ends the transaction, keeping its writes in the block
// tier.
func (s *Store) WriteThenClearTx() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTx
	}
	if err := merge(tierWriter{s.block}, s.tx); err != nil {
		return err
	}
	s.tx = nil
	return nil
}

// ClearTx ends the transaction, discarding its writes.
func (s *Store) ClearTx() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return ErrNoTx
	}
	s.tx = nil
	return nil
}

// InTx reports whether a transaction is open.
func (s *Store) InTx() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tx != nil
}

type treeWriter struct {
	ctx  context.Context
	tree *iavl.MutableTree
}

func (w treeWriter) set(key, value []byte) error {
	_, _, err := w.tree.Set(w.ctx, key, value)
	return err
}

func (w treeWriter) delete(key []byte) error {
	_, _, err := w.tree.Remove(w.ctx, key)
	return err
}

// Commit applies the block tier to the tree, saves a new version and
// returns its root hash. Every call creates exactly one version, even
// with nothing to apply. If the tree cannot be written, the tree's
// working state is undefined and the Store should be abandoned.
func (s *Store) Commit(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return nil, ErrTxOpen
	}
	writes := s.block.len()
	if err := merge(treeWriter{ctx, s.tree}, s.block); err != nil {
		return nil, errors.Wrap(err, "apply block")
	}
	hash, version, err := s.tree.SaveVersion(ctx)
	if err != nil {
		return nil, err
	}
	s.block = newTier()
	s.logger.Debug("committed",
		zap.Uint64("version", version),
		zap.String("hash", hex.EncodeToString(hash)),
		zap.Int("writes", writes))
	return hash, nil
}

// Iterator returns the visible entries within bounds, merging both tiers
// with the tree the same way Get does. Tier contents are copied when the
// iterator is created; it must not be used after the next Commit.
func (s *Store) Iterator(ctx context.Context, bounds kv.Bounds, reverse bool) kv.Iterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	staged := s.block.entries(bounds)
	if s.tx != nil {
		staged = overlay(s.tx.entries(bounds), staged)
	}
	return newMergeIterator(staged, s.tree.Iterator(ctx, bounds, reverse), reverse)
}
