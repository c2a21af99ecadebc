package benchmarks

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Document is a larger state value for realistic benchmarks.
type Document struct {
	ID       string            `json:"id"`
	Values   []int             `json:"values"`
	Metadata map[string]string `json:"metadata"`
	Tags     []string          `json:"tags"`
}

func largeSchema() *stategraph.Schema {
	return stategraph.NewSchema(
		stategraph.NewField[Document]("doc", stategraph.Overwrite),
		stategraph.NewField[[]string]("log", stategraph.Append),
		stategraph.NewField[int]("steps", stategraph.Add),
	)
}

func largeState(b *testing.B) stategraph.State {
	b.Helper()
	state, err := largeSchema().Init(stategraph.Update{
		"doc": Document{
			ID:       "test-id",
			Values:   []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			Metadata: map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"},
			Tags:     []string{"c1", "c2", "c3"},
		},
		"log": []string{"created"},
	})
	if err != nil {
		b.Fatal(err)
	}
	return state
}

func encodedState(b *testing.B) []byte {
	b.Helper()
	data, err := largeSchema().Encode(largeState(b))
	if err != nil {
		b.Fatal(err)
	}
	return data
}

func benchmarkPut(b *testing.B, store checkpoint.Store) {
	ctx := context.Background()
	data := encodedState(b)
	seq := 0
	for b.Loop() {
		seq++
		if err := store.Put(ctx, checkpoint.New("thread-1", "node", seq, data, "next")); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, store checkpoint.Store) {
	ctx := context.Background()
	if err := store.Put(ctx, checkpoint.New("thread-1", "node", 1, encodedState(b), "next")); err != nil {
		b.Fatal(err)
	}
	for b.Loop() {
		if _, err := store.Get(ctx, "thread-1"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemoryStore(b *testing.B) {
	b.Run("Put", func(b *testing.B) { benchmarkPut(b, checkpoint.NewMemoryStore()) })
	b.Run("Get", func(b *testing.B) { benchmarkGet(b, checkpoint.NewMemoryStore()) })
}

func BenchmarkSQLiteStore(b *testing.B) {
	b.Run("Put", func(b *testing.B) { benchmarkPut(b, sqliteStore(b)) })
	b.Run("Get", func(b *testing.B) { benchmarkGet(b, sqliteStore(b)) })
}

func BenchmarkRedisStore(b *testing.B) {
	b.Run("Put", func(b *testing.B) { benchmarkPut(b, redisStore(b)) })
	b.Run("Get", func(b *testing.B) { benchmarkGet(b, redisStore(b)) })
}

// BenchmarkRun_WithCheckpointing measures execution with a checkpoint per step.
func BenchmarkRun_WithCheckpointing(b *testing.B) {
	store := checkpoint.NewMemoryStore()
	compiled := mustCompile(buildDocumentGraph(5))
	ctx := stategraph.NewContext(context.Background())
	input := stategraph.Update(largeState(b))

	i := 0
	for b.Loop() {
		i++
		_, _ = compiled.Run(ctx, input,
			stategraph.WithCheckpointing(store),
			stategraph.WithThreadID("thread-"+strconv.Itoa(i)),
		)
	}
}

// BenchmarkRun_WithoutCheckpointing is the baseline without checkpointing.
func BenchmarkRun_WithoutCheckpointing(b *testing.B) {
	compiled := mustCompile(buildDocumentGraph(5))
	ctx := stategraph.NewContext(context.Background())
	input := stategraph.Update(largeState(b))

	for b.Loop() {
		_, _ = compiled.Run(ctx, input)
	}
}

// BenchmarkSchemaEncode measures state serialization overhead.
func BenchmarkSchemaEncode(b *testing.B) {
	schema := largeSchema()
	state := largeState(b)
	for b.Loop() {
		_, _ = schema.Encode(state)
	}
}

// BenchmarkSchemaDecode measures typed state restoration overhead.
func BenchmarkSchemaDecode(b *testing.B) {
	schema := largeSchema()
	data := encodedState(b)
	for b.Loop() {
		_, _ = schema.Decode(data)
	}
}

// Helper functions

func sqliteStore(b *testing.B) *checkpoint.SQLiteStore {
	b.Helper()
	store, err := checkpoint.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = store.Close() })
	return store
}

func redisStore(b *testing.B) *checkpoint.RedisStore {
	b.Helper()
	mr := miniredis.RunT(b)
	store := checkpoint.NewRedisStore(mr.Addr(), "", 0)
	b.Cleanup(func() { _ = store.Close() })
	return store
}

func buildDocumentGraph(n int) *stategraph.Graph {
	step := func(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		return stategraph.Update{"steps": 1, "log": ctx.NodeID()}, nil
	}
	graph := stategraph.NewGraph(largeSchema())
	for i := range n {
		graph.AddNode(nodeID(i), step)
	}
	for i := range n - 1 {
		graph.AddEdge(nodeID(i), nodeID(i+1))
	}
	graph.SetFinish(nodeID(n - 1))
	graph.SetEntry(nodeID(0))
	return graph
}
