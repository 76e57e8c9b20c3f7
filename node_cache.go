package iavl

import lru "github.com/hashicorp/golang-lru"

// NodeCache caches saved, deserialized nodes by hash. Since saved nodes
// are immutable, one cache may be shared by any number of trees over the
// same byte store, and by concurrent readers. It is also used to avoid
// re-writing nodes that are known to be stored already, so a cache must
// not be shared between trees over different byte stores.
type NodeCache interface {
	// Add adds or refreshes a node, reporting whether another was evicted.
	Add(key, value interface{}) (evicted bool)
	// Contains indicates the node with the given hash is cached, without
	// refreshing it.
	Contains(key interface{}) bool
	// Get retrieves the node with the given hash, if cached.
	Get(key interface{}) (value interface{}, ok bool)
	// Len returns the number of cached nodes.
	Len() int
}

// NewNodeCache creates a least-recently-used node cache holding up to size
// nodes. It panics if size is not positive.
func NewNodeCache(size int) NodeCache {
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return cache
}
