/*
Package iavl provides a versioned, persistent key/value map
implemented as a Merkle AVL tree.  Every saved version is identified
by a 32-byte root hash that commits to all of its keys and values, so
two trees holding the same entries in the same shape have the same
hash, and any difference in contents shows up in the hash.

Uses

- Authenticated application state that must be agreed on by
independent replicas

- Cheap access to historical versions of a map

- Copy-on-write snapshots for concurrent readers

Structure

Values live only in leaves.  Each inner node holds a separator, the
smallest key of its right subtree: keys below it are on the left,
the rest on the right.  Writes copy the path from the root to the
affected leaf, rebalancing with AVL rotations, and leave every other
node shared with the previous version.

Nodes are hashed lazily by SaveVersion and stored under their hash,
so identical subtrees are stored once, whichever versions contain
them.  Nodes can be stored in anything that implements kv.Store:
memory, bbolt, LevelDB, a directory, or S3.

The shape of the tree, and so its hash, depends on the order of
writes as well as the final contents.  Callers needing agreement
across replicas should apply each block of writes in a canonical
order; see the cachekv package.  The multistore package commits
several named trees together under one hash.

Concurrency

A MutableTree has a single working version, and writers are
serialized.  GetImmutable returns a snapshot of any saved version
that shares nodes with the working tree and can be read from many
goroutines at once.
*/
package iavl
