package prefix

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/iavl/kv/memkv"
)

var ctx = context.Background()

func TestNamespacesDoNotCollide(t *testing.T) {
	t.Parallel()
	parent := memkv.New()
	a := New(parent, []byte("a/"))
	b := New(parent, []byte("b/"))

	require.NoError(t, a.Put(ctx, []byte("k"), []byte("from a")))
	require.NoError(t, b.Put(ctx, []byte("k"), []byte("from b")))

	v, err := a.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("from a"), v)
	v, err = b.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("from b"), v)

	raw, err := parent.Get(ctx, []byte("a/k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("from a"), raw)

	require.NoError(t, a.Delete(ctx, []byte("k")))
	v, err = b.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("from b"), v)
}

func TestIterationStripsNamespace(t *testing.T) {
	t.Parallel()
	parent := memkv.New()
	require.NoError(t, parent.Put(ctx, []byte("a"), []byte("outside")))
	s := New(parent, []byte{7})
	require.NoError(t, s.Put(ctx, []byte{1, 1}, []byte{1}))
	require.NoError(t, s.Put(ctx, []byte{2, 1}, []byte{2}))
	require.NoError(t, s.Put(ctx, []byte{2, 2}, []byte{3}))
	require.NoError(t, parent.Put(ctx, []byte{8, 2, 1}, []byte("neighbour")))

	it := s.Iterator(ctx)
	var keys [][]byte
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Err())
	require.NoError(t, it.Close())
	assert.Equal(t, [][]byte{{1, 1}, {2, 1}, {2, 2}}, keys)

	it = s.PrefixIterator(ctx, []byte{2})
	keys = nil
	for it.Next() {
		keys = append(keys, it.Key())
	}
	assert.Nil(t, it.Key())
	require.NoError(t, it.Close())
	assert.Equal(t, [][]byte{{2, 1}, {2, 2}}, keys)
}

func TestNamespaceOfAllOnes(t *testing.T) {
	t.Parallel()
	parent := memkv.New()
	s := New(parent, []byte{0xff})
	require.NoError(t, s.Put(ctx, []byte{0xff, 1}, []byte{1}))
	require.NoError(t, parent.Put(ctx, []byte{0xfe, 0}, []byte{2}))

	it := s.PrefixIterator(ctx, []byte{0xff})
	defer it.Close()
	require.True(t, it.Next())
	assert.Equal(t, []byte{0xff, 1}, it.Key())
	assert.False(t, it.Next())
}
