package workflows

import (
	"github.com/randalmurphal/stategraph/pkg/stategraph"
)

// Counter field names.
const (
	CountField   = "count"
	SumField     = "sum"
	HistoryField = "history"
)

// CounterSchema declares count (overwrite), sum (add) and history (append).
func CounterSchema() *stategraph.Schema {
	return stategraph.NewSchema(
		stategraph.NewField[int](CountField, stategraph.Overwrite),
		stategraph.NewField[int](SumField, stategraph.Add),
		stategraph.NewField[[]int](HistoryField, stategraph.Append),
	)
}

// Counter builds a single-node loop: increment adds one to count, adds one
// to sum and appends the new count to history, repeating while
// count < limit.
func Counter(limit int) (*stategraph.CompiledGraph, error) {
	increment := func(_ stategraph.Context, s stategraph.State) (stategraph.Update, error) {
		n := stategraph.Value[int](s, CountField) + 1
		return stategraph.Update{CountField: n, SumField: 1, HistoryField: n}, nil
	}
	shouldContinue := func(_ stategraph.Context, s stategraph.State) string {
		if stategraph.Value[int](s, CountField) < limit {
			return "continue"
		}
		return "stop"
	}

	return stategraph.NewGraph(CounterSchema()).
		AddNode("increment", increment).
		AddConditionalEdges("increment", shouldContinue, map[string]string{
			"continue": "increment",
			"stop":     stategraph.END,
		}).
		SetEntry("increment").
		Compile()
}
