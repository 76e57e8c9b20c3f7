package iavl

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/commands"
	"github.com/stretchr/testify/require"

	"github.com/jrhy/iavl/kv"
)

func benchmarkStdMapInsert(factor int, b *testing.B) {
	m := map[string][]byte{}
	for n := 0; n < factor*b.N; n++ {
		k := key(uint(n))
		m[string(k)] = k
	}
}

func BenchmarkStdMapInsert1(b *testing.B)   { benchmarkStdMapInsert(1, b) }
func BenchmarkStdMapInsert10(b *testing.B)  { benchmarkStdMapInsert(10, b) }
func BenchmarkStdMapInsert100(b *testing.B) { benchmarkStdMapInsert(100, b) }
func BenchmarkStdMapInsert1k(b *testing.B)  { benchmarkStdMapInsert(1_000, b) }
func BenchmarkStdMapInsert10k(b *testing.B) { benchmarkStdMapInsert(10_000, b) }

func benchmarkTreeSet(factor int, b *testing.B) {
	tree, _ := newTestTree()
	for n := 0; n < factor*b.N; n++ {
		k := key(uint(n))
		tree.Set(ctx, k, k)
	}
}

func BenchmarkTreeSet1(b *testing.B)   { benchmarkTreeSet(1, b) }
func BenchmarkTreeSet10(b *testing.B)  { benchmarkTreeSet(10, b) }
func BenchmarkTreeSet100(b *testing.B) { benchmarkTreeSet(100, b) }
func BenchmarkTreeSet1k(b *testing.B)  { benchmarkTreeSet(1_000, b) }
func BenchmarkTreeSet10k(b *testing.B) { benchmarkTreeSet(10_000, b) }

func benchmarkTreeSave(factor int, b *testing.B) {
	tree, _ := newTestTree()
	for n := 0; n < b.N; n++ {
		b.StopTimer()
		for i := 0; i < factor; i++ {
			k := key(uint(n*factor + i))
			tree.Set(ctx, k, k)
		}
		b.StartTimer()
		tree.SaveVersion(ctx)
	}
}

func BenchmarkTreeSave1(b *testing.B)   { benchmarkTreeSave(1, b) }
func BenchmarkTreeSave10(b *testing.B)  { benchmarkTreeSave(10, b) }
func BenchmarkTreeSave100(b *testing.B) { benchmarkTreeSave(100, b) }
func BenchmarkTreeSave1k(b *testing.B)  { benchmarkTreeSave(1_000, b) }

func benchmarkTreeGet(factor int, b *testing.B) {
	tree, _ := newTestTree()
	b.StopTimer()
	for n := 0; n < factor*b.N; n++ {
		k := key(uint(n))
		tree.Set(ctx, k, k)
	}
	tree.SaveVersion(ctx)
	b.StartTimer()
	for n := 0; n < factor*b.N; n++ {
		tree.Get(ctx, key(uint(n)))
	}
}

func BenchmarkTreeGet1(b *testing.B)   { benchmarkTreeGet(1, b) }
func BenchmarkTreeGet10(b *testing.B)  { benchmarkTreeGet(10, b) }
func BenchmarkTreeGet100(b *testing.B) { benchmarkTreeGet(100, b) }
func BenchmarkTreeGet1k(b *testing.B)  { benchmarkTreeGet(1_000, b) }
func BenchmarkTreeGet10k(b *testing.B) { benchmarkTreeGet(10_000, b) }

func BenchmarkTreeIterate10k(b *testing.B) {
	tree, _ := newTestTree()
	for n := 0; n < 10_000; n++ {
		k := key(uint(n))
		tree.Set(ctx, k, k)
	}
	tree.SaveVersion(ctx)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		it := tree.Iterator(ctx, kv.All(), false)
		for it.Next() {
		}
		it.Close()
	}
}

func BenchmarkExerciser(b *testing.B) {
	parameters := gopter.DefaultTestParametersWithSeed(1593228262585360000)
	parameters.MaxSize = 1024
	parameters.MinSuccessfulTests = b.N
	properties := gopter.NewProperties(parameters)
	properties.Property("tree exerciser", commands.Prop(treeCommands))
	out := bytes.NewBuffer(nil)
	reporter := gopter.NewFormatedReporter(false, 98, out)
	require.True(b, properties.Run(reporter))
}
