package iavl

import (
	"bytes"
	"context"
	"encoding/binary"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jrhy/iavl/merkle"
)

// node is either a leaf, holding a key and value, or an inner node whose key
// is the smallest key of its right subtree. Keys below an inner node's key
// live on the left, all others on the right.
//
// A node with a nil hash is dirty: it exists only in the working tree, is
// owned by the writer, and may point at children that are dirty too. Once
// saved, a node has its hash set, refers to its children only by hash, and
// is never modified again, so it can be shared with any number of readers.
type node struct {
	key       []byte
	value     []byte
	height    uint8
	size      uint64
	hash      []byte
	leftHash  []byte
	rightHash []byte
	left      *node
	right     *node
}

func newLeaf(key, value []byte) *node {
	return &node{key: key, value: value, size: 1}
}

func (n *node) isLeaf() bool {
	return n.height == 0
}

// clone returns a dirty copy that the writer may modify.
func (n *node) clone() *node {
	return &node{
		key:       n.key,
		value:     n.value,
		height:    n.height,
		size:      n.size,
		leftHash:  n.leftHash,
		rightHash: n.rightHash,
		left:      n.left,
		right:     n.right,
	}
}

func (n *node) setLeft(child *node) {
	n.left = child
	n.leftHash = child.hash
}

func (n *node) setRight(child *node) {
	n.right = child
	n.rightHash = child.hash
}

func (n *node) leftNode(ctx context.Context, ndb *nodeDB) (*node, error) {
	if n.left != nil {
		return n.left, nil
	}
	return ndb.GetNode(ctx, n.leftHash)
}

func (n *node) rightNode(ctx context.Context, ndb *nodeDB) (*node, error) {
	if n.right != nil {
		return n.right, nil
	}
	return ndb.GetNode(ctx, n.rightHash)
}

// computeHash hashes a leaf's key and value, or an inner node's child
// hashes. Children must already be hashed.
func (n *node) computeHash() []byte {
	if n.isLeaf() {
		preimage := make([]byte, 0, len(n.key)+len(n.value)+2*binary.MaxVarintLen64)
		preimage = protowire.AppendBytes(preimage, n.key)
		preimage = protowire.AppendBytes(preimage, n.value)
		return merkle.LeafHash(preimage)
	}
	return merkle.InnerHash(n.leftHash, n.rightHash)
}

func (n *node) get(ctx context.Context, ndb *nodeDB, key []byte) ([]byte, error) {
	var err error
	for !n.isLeaf() {
		if bytes.Compare(key, n.key) < 0 {
			n, err = n.leftNode(ctx, ndb)
		} else {
			n, err = n.rightNode(ctx, ndb)
		}
		if err != nil {
			return nil, err
		}
	}
	if bytes.Equal(n.key, key) {
		// leaves are shared with the cache and other versions
		return append([]byte{}, n.value...), nil
	}
	return nil, nil
}

// updateHeightAndSize recomputes an inner node's height and size from its
// children, loading them if necessary.
func (n *node) updateHeightAndSize(ctx context.Context, ndb *nodeDB) error {
	left, err := n.leftNode(ctx, ndb)
	if err != nil {
		return err
	}
	right, err := n.rightNode(ctx, ndb)
	if err != nil {
		return err
	}
	n.height = 1 + uint8max(left.height, right.height)
	n.size = left.size + right.size
	return nil
}

func (n *node) balanceFactor(ctx context.Context, ndb *nodeDB) (int, error) {
	left, err := n.leftNode(ctx, ndb)
	if err != nil {
		return 0, err
	}
	right, err := n.rightNode(ctx, ndb)
	if err != nil {
		return 0, err
	}
	return int(left.height) - int(right.height), nil
}

func uint8max(x, y uint8) uint8 {
	if x > y {
		return x
	}
	return y
}

// rotateRight lifts n's left child above it. n must be dirty.
//
//	    n            l
//	   / \          / \
//	  l   c   =>   a   n
//	 / \              / \
//	a   b            b   c
func (n *node) rotateRight(ctx context.Context, ndb *nodeDB) (*node, error) {
	l, err := n.leftNode(ctx, ndb)
	if err != nil {
		return nil, err
	}
	l = l.clone()
	n.left, n.leftHash = l.right, l.rightHash
	l.right, l.rightHash = n, nil
	if err := n.updateHeightAndSize(ctx, ndb); err != nil {
		return nil, err
	}
	if err := l.updateHeightAndSize(ctx, ndb); err != nil {
		return nil, err
	}
	return l, nil
}

// rotateLeft is the mirror image of rotateRight.
func (n *node) rotateLeft(ctx context.Context, ndb *nodeDB) (*node, error) {
	r, err := n.rightNode(ctx, ndb)
	if err != nil {
		return nil, err
	}
	r = r.clone()
	n.right, n.rightHash = r.left, r.leftHash
	r.left, r.leftHash = n, nil
	if err := n.updateHeightAndSize(ctx, ndb); err != nil {
		return nil, err
	}
	if err := r.updateHeightAndSize(ctx, ndb); err != nil {
		return nil, err
	}
	return r, nil
}

// balance restores the AVL invariant at n, which must be dirty and have
// up-to-date height and size.
func (n *node) balance(ctx context.Context, ndb *nodeDB) (*node, error) {
	bf, err := n.balanceFactor(ctx, ndb)
	if err != nil {
		return nil, err
	}
	switch {
	case bf > 1:
		l, err := n.leftNode(ctx, ndb)
		if err != nil {
			return nil, err
		}
		lbf, err := l.balanceFactor(ctx, ndb)
		if err != nil {
			return nil, err
		}
		if lbf < 0 {
			l, err = l.clone().rotateLeft(ctx, ndb)
			if err != nil {
				return nil, err
			}
			n.setLeft(l)
		}
		return n.rotateRight(ctx, ndb)
	case bf < -1:
		r, err := n.rightNode(ctx, ndb)
		if err != nil {
			return nil, err
		}
		rbf, err := r.balanceFactor(ctx, ndb)
		if err != nil {
			return nil, err
		}
		if rbf > 0 {
			r, err = r.clone().rotateRight(ctx, ndb)
			if err != nil {
				return nil, err
			}
			n.setRight(r)
		}
		return n.rotateLeft(ctx, ndb)
	}
	return n, nil
}

// set returns the root of a subtree equal to n's with key set to value.
// Only the path to key is copied.
func (n *node) set(ctx context.Context, ndb *nodeDB, key, value []byte) (newNode *node, old []byte, updated bool, err error) {
	if n.isLeaf() {
		switch cmp := bytes.Compare(key, n.key); {
		case cmp < 0:
			parent := &node{key: n.key, height: 1, size: 2}
			parent.setLeft(newLeaf(key, value))
			parent.setRight(n)
			return parent, nil, false, nil
		case cmp > 0:
			parent := &node{key: key, height: 1, size: 2}
			parent.setLeft(n)
			parent.setRight(newLeaf(key, value))
			return parent, nil, false, nil
		default:
			return newLeaf(key, value), n.value, true, nil
		}
	}

	n = n.clone()
	if bytes.Compare(key, n.key) < 0 {
		child, err := n.leftNode(ctx, ndb)
		if err != nil {
			return nil, nil, false, err
		}
		child, old, updated, err = child.set(ctx, ndb, key, value)
		if err != nil {
			return nil, nil, false, err
		}
		n.setLeft(child)
	} else {
		child, err := n.rightNode(ctx, ndb)
		if err != nil {
			return nil, nil, false, err
		}
		child, old, updated, err = child.set(ctx, ndb, key, value)
		if err != nil {
			return nil, nil, false, err
		}
		n.setRight(child)
	}
	if updated {
		// same shape; only hashes along the path change
		return n, old, true, nil
	}
	if err := n.updateHeightAndSize(ctx, ndb); err != nil {
		return nil, nil, false, err
	}
	n, err = n.balance(ctx, ndb)
	if err != nil {
		return nil, nil, false, err
	}
	return n, nil, false, nil
}

// remove returns the root of a subtree equal to n's without key, or nil if
// the subtree becomes empty. newKey is non-nil when the smallest key of the
// subtree changed, so that an ancestor holding it as its separator can
// follow.
func (n *node) remove(ctx context.Context, ndb *nodeDB, key []byte) (newNode *node, newKey, old []byte, removed bool, err error) {
	if n.isLeaf() {
		if bytes.Equal(key, n.key) {
			return nil, nil, n.value, true, nil
		}
		return n, nil, nil, false, nil
	}

	if bytes.Compare(key, n.key) < 0 {
		left, err := n.leftNode(ctx, ndb)
		if err != nil {
			return nil, nil, nil, false, err
		}
		newLeft, newKey, old, removed, err := left.remove(ctx, ndb, key)
		if err != nil || !removed {
			return n, nil, nil, false, err
		}
		if newLeft == nil {
			right, err := n.rightNode(ctx, ndb)
			if err != nil {
				return nil, nil, nil, false, err
			}
			return right, n.key, old, true, nil
		}
		n = n.clone()
		n.setLeft(newLeft)
		if err := n.updateHeightAndSize(ctx, ndb); err != nil {
			return nil, nil, nil, false, err
		}
		n, err = n.balance(ctx, ndb)
		if err != nil {
			return nil, nil, nil, false, err
		}
		return n, newKey, old, true, nil
	}

	right, err := n.rightNode(ctx, ndb)
	if err != nil {
		return nil, nil, nil, false, err
	}
	newRight, newKey, old, removed, err := right.remove(ctx, ndb, key)
	if err != nil || !removed {
		return n, nil, nil, false, err
	}
	if newRight == nil {
		left, err := n.leftNode(ctx, ndb)
		if err != nil {
			return nil, nil, nil, false, err
		}
		return left, nil, old, true, nil
	}
	n = n.clone()
	n.setRight(newRight)
	if newKey != nil {
		n.key = newKey
	}
	if err := n.updateHeightAndSize(ctx, ndb); err != nil {
		return nil, nil, nil, false, err
	}
	n, err = n.balance(ctx, ndb)
	if err != nil {
		return nil, nil, nil, false, err
	}
	return n, nil, old, true, nil
}
