package memkv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/kv/kvtest"
)

var ctx = context.Background()

func collect(t *testing.T, it kv.Iterator) map[string][]byte {
	defer it.Close()
	found := map[string][]byte{}
	for it.Next() {
		found[string(it.Key())] = it.Value()
	}
	require.NoError(t, it.Err())
	return found
}

func TestGetPut(t *testing.T) {
	t.Parallel()
	s := New()
	v, err := s.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v1")))
	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v2")))
	v, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, s.Delete(ctx, []byte("k")))
	require.NoError(t, s.Delete(ctx, []byte("k")))
	v, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPrefixIterator(t *testing.T) {
	t.Parallel()
	s := New()
	require.NoError(t, s.Put(ctx, []byte{1, 1}, []byte{1}))
	require.NoError(t, s.Put(ctx, []byte{2, 1}, []byte{2}))
	assert.Equal(t,
		map[string][]byte{string([]byte{2, 1}): {2}},
		collect(t, s.PrefixIterator(ctx, []byte{2})))
}

func TestPrefixIteratorAllOnes(t *testing.T) {
	t.Parallel()
	s := New()
	require.NoError(t, s.Put(ctx, []byte{0xfe}, []byte{1}))
	require.NoError(t, s.Put(ctx, []byte{0xff}, []byte{2}))
	require.NoError(t, s.Put(ctx, []byte{0xff, 0xff, 3}, []byte{3}))
	assert.Equal(t,
		map[string][]byte{
			string([]byte{0xff}):          {2},
			string([]byte{0xff, 0xff, 3}): {3},
		},
		collect(t, s.PrefixIterator(ctx, []byte{0xff})))
}

func TestIteratorIsOrdered(t *testing.T) {
	t.Parallel()
	s := New()
	for _, k := range []string{"c", "a", "b", "ab"} {
		require.NoError(t, s.Put(ctx, []byte(k), []byte(k)))
	}
	it := s.Iterator(ctx)
	defer it.Close()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"a", "ab", "b", "c"}, keys)
	assert.Equal(t, 4, s.Len())
}

func TestConformance(t *testing.T) {
	t.Parallel()
	kvtest.TestStore(t, New())
}

func TestTree(t *testing.T) {
	t.Parallel()
	kvtest.TestTree(t, New())
}
