// Package kvtest checks that a kv.Store behaves the way trees rely on.
package kvtest

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/iavl"
	"github.com/jrhy/iavl/kv"
)

var ctx = context.Background()

// Entry is a key and value as seen through an iterator.
type Entry struct {
	Key, Value string
}

// Collect drains and closes it.
func Collect(t testing.TB, it kv.Iterator) []Entry {
	defer it.Close()
	var entries []Entry
	for it.Next() {
		entries = append(entries, Entry{string(it.Key()), string(it.Value())})
	}
	require.NoError(t, it.Err())
	return entries
}

// TestStore exercises reads, writes, deletes and ordered iteration on an
// empty store.
func TestStore(t *testing.T, s kv.Store) {
	v, err := s.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v1")))
	require.NoError(t, s.Put(ctx, []byte("k"), []byte("v2")))
	v, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	// returned values are the caller's
	v[0] = 'x'
	v, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, s.Delete(ctx, []byte("k")))
	require.NoError(t, s.Delete(ctx, []byte("k")))
	v, err = s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)

	for _, k := range [][]byte{{2, 1}, {1, 1}, {2}, {2, 0xff}, {3}, {0xff, 0xff}, {0xff, 0xff, 1}} {
		require.NoError(t, s.Put(ctx, k, append([]byte("v"), k...)))
	}
	all := Collect(t, s.Iterator(ctx))
	require.Len(t, all, 7)
	for i := 1; i < len(all); i++ {
		require.Negative(t, bytes.Compare([]byte(all[i-1].Key), []byte(all[i].Key)))
	}
	assert.Equal(t, []Entry{
		{"\x02", "v\x02"},
		{"\x02\x01", "v\x02\x01"},
		{"\x02\xff", "v\x02\xff"},
	}, Collect(t, s.PrefixIterator(ctx, []byte{2})))
	assert.Equal(t, []Entry{
		{"\xff\xff", "v\xff\xff"},
		{"\xff\xff\x01", "v\xff\xff\x01"},
	}, Collect(t, s.PrefixIterator(ctx, []byte{0xff, 0xff})))
	assert.Empty(t, Collect(t, s.PrefixIterator(ctx, []byte{4})))
}

// TestTree saves several versions of a tree into an empty store, then
// reopens them through a fresh tree and cache.
func TestTree(t *testing.T, s kv.Store) {
	tree := iavl.NewMutableTree(s, nil)
	var hashes [][]byte
	for v := 0; v < 4; v++ {
		for i := 0; i < 25; i++ {
			k := []byte(fmt.Sprintf("key-%03d", v*10+i))
			_, _, err := tree.Set(ctx, k, []byte(fmt.Sprintf("value-%d", v)))
			require.NoError(t, err)
		}
		hash, _, err := tree.SaveVersion(ctx)
		require.NoError(t, err)
		hashes = append(hashes, hash)
	}

	reopened := iavl.NewMutableTree(s, &iavl.Options{CacheSize: 16})
	version, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), version)
	require.Equal(t, tree.Hash(), reopened.Hash())
	require.Equal(t, tree.Size(), reopened.Size())

	versions, err := reopened.Versions(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3, 4}, versions)
	for i, hash := range hashes {
		snapshot, err := reopened.GetImmutable(ctx, uint64(i+1))
		require.NoError(t, err)
		require.Equal(t, hash, snapshot.Hash())
		value, err := snapshot.Get(ctx, []byte("key-010"))
		require.NoError(t, err)
		if i == 0 {
			require.Equal(t, []byte("value-0"), value)
		} else {
			require.Equal(t, []byte("value-1"), value)
		}
	}
	entries := Collect(t, reopened.Iterator(ctx, kv.Prefix([]byte("key-03")), false))
	require.Len(t, entries, 10)
	require.Equal(t, "key-030", entries[0].Key)
}
