package iavl

import (
	"bytes"
	"context"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/merkle"
)

// Layout of a tree's namespace in its byte store.
const (
	rootsPrefix = 'r' // r<uvarint version> -> root hash
	nodesPrefix = 'n' // n<hash> -> marshaled node
)

func rootKey(version uint64) []byte {
	return binary.AppendUvarint([]byte{rootsPrefix}, version)
}

func nodeKey(hash []byte) []byte {
	return append([]byte{nodesPrefix}, hash...)
}

// nodeDB stores nodes by their hash and the root hash of every saved
// version. It is safe for concurrent use.
type nodeDB struct {
	db     kv.Store
	cache  NodeCache
	logger *zap.Logger
}

func newNodeDB(db kv.Store, cache NodeCache, logger *zap.Logger) *nodeDB {
	return &nodeDB{db: db, cache: cache, logger: logger}
}

// corrupt logs and panics; see CorruptionError.
func (ndb *nodeDB) corrupt(hash []byte, msg string, err error) {
	cerr := &CorruptionError{Hash: hash, Msg: msg, Err: err}
	ndb.logger.Error("node store corrupt",
		zap.Binary("hash", hash),
		zap.String("reason", msg),
		zap.Error(err))
	panic(cerr)
}

// GetNode returns the saved node with the given hash, reading it from the
// byte store on a cache miss.
func (ndb *nodeDB) GetNode(ctx context.Context, hash []byte) (*node, error) {
	if cached, ok := ndb.cache.Get(string(hash)); ok {
		return cached.(*node), nil
	}
	buf, err := ndb.db.Get(ctx, nodeKey(hash))
	if err != nil {
		return nil, errors.Wrapf(err, "load node %x", hash)
	}
	if buf == nil {
		ndb.corrupt(hash, "referenced node is missing", nil)
	}
	n, err := unmarshalNode(buf)
	if err != nil {
		ndb.corrupt(hash, "cannot unmarshal node", err)
	}
	n.hash = hash
	if !bytes.Equal(n.computeHash(), hash) {
		ndb.corrupt(hash, "node contents do not match hash", nil)
	}
	ndb.cache.Add(string(hash), n)
	return n, nil
}

// SaveNode persists a hashed node whose children are saved already.
// Nodes the cache knows about are not rewritten; being content addressed,
// the stored bytes could only be identical.
func (ndb *nodeDB) SaveNode(ctx context.Context, n *node) error {
	if n.hash == nil {
		return errors.New("cannot save a node without a hash")
	}
	if ndb.cache.Contains(string(n.hash)) {
		return nil
	}
	if err := ndb.db.Put(ctx, nodeKey(n.hash), marshalNode(n)); err != nil {
		return errors.Wrapf(err, "save node %x", n.hash)
	}
	ndb.cache.Add(string(n.hash), n)
	return nil
}

// saveBranch hashes and saves every dirty node under n, children first,
// and returns n's hash. Saved nodes drop their child pointers so that
// afterwards they are reachable only through the node store.
func (ndb *nodeDB) saveBranch(ctx context.Context, n *node) ([]byte, error) {
	if n.hash != nil {
		return n.hash, nil
	}
	if !n.isLeaf() {
		if n.left != nil {
			hash, err := ndb.saveBranch(ctx, n.left)
			if err != nil {
				return nil, err
			}
			n.leftHash = hash
		}
		if n.right != nil {
			hash, err := ndb.saveBranch(ctx, n.right)
			if err != nil {
				return nil, err
			}
			n.rightHash = hash
		}
		n.left, n.right = nil, nil
	}
	hash := n.computeHash()
	n.hash = hash
	if err := ndb.SaveNode(ctx, n); err != nil {
		n.hash = nil
		return nil, err
	}
	return hash, nil
}

// GetRoot returns the root hash saved for version, or nil if there is none.
func (ndb *nodeDB) GetRoot(ctx context.Context, version uint64) ([]byte, error) {
	hash, err := ndb.db.Get(ctx, rootKey(version))
	if err != nil {
		return nil, errors.Wrapf(err, "load root of version %d", version)
	}
	return hash, nil
}

// SaveRoot records hash as the root of version. Empty trees are recorded
// with merkle.EmptyHash.
func (ndb *nodeDB) SaveRoot(ctx context.Context, version uint64, hash []byte) error {
	if err := ndb.db.Put(ctx, rootKey(version), hash); err != nil {
		return errors.Wrapf(err, "save root of version %d", version)
	}
	return nil
}

// DeleteRoot forgets version. Its nodes stay, since later versions may
// share them.
func (ndb *nodeDB) DeleteRoot(ctx context.Context, version uint64) error {
	if err := ndb.db.Delete(ctx, rootKey(version)); err != nil {
		return errors.Wrapf(err, "delete root of version %d", version)
	}
	return nil
}

// Versions returns every saved version in ascending order.
func (ndb *nodeDB) Versions(ctx context.Context) ([]uint64, error) {
	it := ndb.db.PrefixIterator(ctx, []byte{rootsPrefix})
	defer it.Close()
	var versions []uint64
	for it.Next() {
		v, n := binary.Uvarint(it.Key()[1:])
		if n <= 0 {
			return nil, errors.Errorf("malformed root key %x", it.Key())
		}
		versions = append(versions, v)
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrap(err, "scan roots")
	}
	// uvarints do not sort numerically
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// loadRoot returns the root node of version, nil for an empty tree.
func (ndb *nodeDB) loadRoot(ctx context.Context, version uint64) (root *node, hash []byte, err error) {
	hash, err = ndb.GetRoot(ctx, version)
	if err != nil {
		return nil, nil, err
	}
	if hash == nil {
		return nil, nil, errors.Wrapf(ErrVersionNotFound, "version %d", version)
	}
	if bytes.Equal(hash, merkle.EmptyHash()) {
		return nil, hash, nil
	}
	root, err = ndb.GetNode(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	return root, hash, nil
}
