package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// BenchmarkRun_Linear runs linear graphs of increasing length.
func BenchmarkRun_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprintf("nodes=%d", n), func(b *testing.B) {
			compiled := mustCompile(buildLinearGraph(n))
			ctx := stategraph.NewContext(context.Background())
			for b.Loop() {
				_, _ = compiled.Run(ctx, nil)
			}
		})
	}
}

// BenchmarkRun_Branching runs a graph with conditional edges.
func BenchmarkRun_Branching(b *testing.B) {
	compiled := mustCompile(buildBranchingGraph())
	ctx := stategraph.NewContext(context.Background())
	i := 0
	for b.Loop() {
		_, _ = compiled.Run(ctx, stategraph.Update{"value": i})
		i++
	}
}

// BenchmarkRun_Loop runs a looping graph whose state grows every step.
func BenchmarkRun_Loop(b *testing.B) {
	for _, n := range []int{3, 10, 100} {
		b.Run(fmt.Sprintf("iterations=%d", n), func(b *testing.B) {
			compiled := mustCompile(buildLoopGraph(n))
			ctx := stategraph.NewContext(context.Background())
			for b.Loop() {
				_, _ = compiled.Run(ctx, nil)
			}
		})
	}
}

// BenchmarkRun_Stream measures the overhead of step events.
func BenchmarkRun_Stream(b *testing.B) {
	compiled := mustCompile(buildLoopGraph(10))
	ctx := stategraph.NewContext(context.Background())
	for b.Loop() {
		for _, err := range compiled.Stream(ctx, nil) {
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

// BenchmarkContextCreation measures context creation overhead.
func BenchmarkContextCreation(b *testing.B) {
	bg := context.Background()
	for b.Loop() {
		stategraph.NewContext(bg)
	}
}

// BenchmarkMerge measures one merge of every policy.
func BenchmarkMerge(b *testing.B) {
	schema := benchSchema()
	state, err := schema.Init(stategraph.Update{"trail": []string{"a", "b", "c"}})
	if err != nil {
		b.Fatal(err)
	}
	update := stategraph.Update{"value": 7, "total": 1, "trail": "d"}
	for b.Loop() {
		_, _ = schema.Merge(state, update)
	}
}
