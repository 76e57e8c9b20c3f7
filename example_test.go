package iavl

import (
	"context"
	"fmt"

	"github.com/jrhy/iavl/kv"
	"github.com/jrhy/iavl/kv/memkv"
)

func ExampleMutableTree_GetImmutable() {
	ctx := context.Background()
	tree := NewMutableTree(memkv.New(), nil)
	tree.Set(ctx, []byte("0"), []byte("foo"))
	tree.Set(ctx, []byte("100"), []byte("asdf"))
	tree.SaveVersion(ctx)
	tree.Set(ctx, []byte("0"), []byte("bar"))
	tree.Remove(ctx, []byte("100"))
	tree.Set(ctx, []byte("200"), []byte("qwerty"))
	tree.SaveVersion(ctx)

	v1, err := tree.GetImmutable(ctx, 1)
	if err != nil {
		panic(err)
	}
	for _, t := range []interface {
		Iterator(context.Context, kv.Bounds, bool) *Iterator
		Version() uint64
	}{v1, tree} {
		it := t.Iterator(ctx, kv.All(), false)
		for it.Next() {
			fmt.Printf("v%d '%s' = '%s'\n", t.Version(), it.Key(), it.Value())
		}
		it.Close()
	}
	// Output:
	// v1 '0' = 'foo'
	// v1 '100' = 'asdf'
	// v2 '0' = 'bar'
	// v2 '200' = 'qwerty'
}

func ExampleMutableTree_Size() {
	ctx := context.Background()
	tree := NewMutableTree(memkv.New(), nil)
	tree.Set(ctx, []byte("0"), []byte("zero"))
	tree.Set(ctx, []byte("1"), []byte("one"))
	fmt.Println(tree.Size())
	// Output:
	// 2
}
