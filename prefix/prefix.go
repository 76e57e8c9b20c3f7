// Package prefix lets many logical stores share one physical kv.Store by
// prepending a fixed namespace to every key.
package prefix

import (
	"context"

	"github.com/jrhy/iavl/kv"
)

// Store is a view of parent restricted to keys beginning with a namespace.
// Keys passed in and handed out are logical; the namespace never leaks.
type Store struct {
	parent    kv.Store
	namespace []byte
}

var _ kv.Store = Store{}

// New returns the view of parent under namespace.
func New(parent kv.Store, namespace []byte) Store {
	return Store{parent, append([]byte(nil), namespace...)}
}

// Namespace returns a copy of the namespace bytes.
func (s Store) Namespace() []byte {
	return append([]byte(nil), s.namespace...)
}

func (s Store) key(key []byte) []byte {
	full := make([]byte, len(s.namespace)+len(key))
	copy(full, s.namespace)
	copy(full[len(s.namespace):], key)
	return full
}

func (s Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	return s.parent.Get(ctx, s.key(key))
}

func (s Store) Put(ctx context.Context, key, value []byte) error {
	return s.parent.Put(ctx, s.key(key), value)
}

func (s Store) Delete(ctx context.Context, key []byte) error {
	return s.parent.Delete(ctx, s.key(key))
}

func (s Store) Iterator(ctx context.Context) kv.Iterator {
	return s.PrefixIterator(ctx, nil)
}

func (s Store) PrefixIterator(ctx context.Context, prefix []byte) kv.Iterator {
	return &iterator{
		Iterator: s.parent.PrefixIterator(ctx, s.key(prefix)),
		strip:    len(s.namespace),
	}
}

type iterator struct {
	kv.Iterator
	strip int
}

func (i *iterator) Key() []byte {
	key := i.Iterator.Key()
	if len(key) < i.strip {
		return nil
	}
	return key[i.strip:]
}
