package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/kv/kvtest"
)

var ctx = context.Background()

func TestFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewStoreForPath(dir)

	err := s.Put(ctx, []byte("foo"), []byte("hello"))
	require.NoError(t, err)
	loaded, err := s.Get(ctx, []byte("foo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), loaded)

	_, err = os.Stat(filepath.Join(dir, "666f6f"))
	require.NoError(t, err)
}

func TestEmptyKey(t *testing.T) {
	t.Parallel()
	s := NewStoreForPath(t.TempDir())
	require.ErrorIs(t, s.Put(ctx, nil, []byte("v")), kv.ErrEmptyKey)
	_, err := s.Get(ctx, []byte{})
	require.ErrorIs(t, err, kv.ErrEmptyKey)
	require.ErrorIs(t, s.Delete(ctx, nil), kv.ErrEmptyKey)
}

func TestChecksum(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewStoreForPath(dir)
	require.NoError(t, s.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, s.Put(ctx, []byte("b"), []byte("2")))

	// a value moved to another key no longer matches
	buf, err := os.ReadFile(filepath.Join(dir, "61"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "62"), buf, 0o644))
	_, err = s.Get(ctx, []byte("b"))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "61"), []byte("short"), 0o644))
	_, err = s.Get(ctx, []byte("a"))
	require.Error(t, err)

	it := s.Iterator(ctx)
	require.False(t, it.Next())
	require.Error(t, it.Err())
	require.NoError(t, it.Close())
}

func TestIgnoresForeignFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewStoreForPath(dir)
	require.NoError(t, s.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".put-123"), []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "62"), 0o755))
	assert.Equal(t, []kvtest.Entry{{Key: "a", Value: "1"}}, kvtest.Collect(t, s.Iterator(ctx)))
}

func TestMissingDirectory(t *testing.T) {
	t.Parallel()
	s := NewStoreForPath(filepath.Join(t.TempDir(), "nope"))
	it := s.Iterator(ctx)
	require.False(t, it.Next())
	require.Error(t, it.Err())
	require.Error(t, s.Put(ctx, []byte("a"), []byte("1")))
}

func TestConformance(t *testing.T) {
	t.Parallel()
	kvtest.TestStore(t, NewStoreForPath(t.TempDir()))
}

func TestTree(t *testing.T) {
	t.Parallel()
	kvtest.TestTree(t, NewStoreForPath(t.TempDir()))
}
