package stategraph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioSchema() *Schema {
	return NewSchema(
		NewField[int]("count", Overwrite),
		NewField[int]("sum", Add),
		NewField[[]int]("history", Append),
		NewField[string]("note", Overwrite),
		NewField[float64]("score", Add),
		NewField[map[string]any]("meta", Overwrite),
	)
}

func TestNewField_Validation(t *testing.T) {
	assert.Panics(t, func() { NewField[int]("", Overwrite) })
	assert.Panics(t, func() { NewField[int]("n", Append) })
	assert.Panics(t, func() { NewField[string]("s", Add) })
	assert.Panics(t, func() { NewField[int]("n", Policy(42)) })

	assert.NotPanics(t, func() { NewField[[]string]("msgs", Append) })
	assert.NotPanics(t, func() { NewField[uint8]("b", Add) })
}

func TestNewSchema_DuplicateField_Panics(t *testing.T) {
	assert.Panics(t, func() {
		NewSchema(NewField[int]("a", Overwrite), NewField[string]("a", Overwrite))
	})
	assert.Panics(t, func() {
		NewSchema(Field{})
	})
}

func TestSchema_Fields_DeclarationOrder(t *testing.T) {
	schema := scenarioSchema()
	var names []string
	for _, f := range schema.Fields() {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"count", "sum", "history", "note", "score", "meta"}, names)

	f, ok := schema.Field("history")
	require.True(t, ok)
	assert.Equal(t, Append, f.Policy())
	assert.Equal(t, "[]int", f.Type().String())
}

func TestSchema_Init(t *testing.T) {
	state, err := scenarioSchema().Init(Update{"count": 2, "history": []int{7}})
	require.NoError(t, err)

	assert.Equal(t, 2, state["count"])
	assert.Equal(t, 0, state["sum"])
	assert.Equal(t, []int{7}, state["history"])
	assert.Equal(t, "", state["note"])
	assert.Nil(t, state["meta"])
}

func TestSchema_Init_AppendStartsEmpty(t *testing.T) {
	state, err := scenarioSchema().Init(nil)
	require.NoError(t, err)

	history, ok := Lookup[[]int](state, "history")
	require.True(t, ok)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSchema_Merge_Policies(t *testing.T) {
	schema := scenarioSchema()
	state, err := schema.Init(nil)
	require.NoError(t, err)

	state, err = schema.Merge(state, Update{"count": 1, "sum": 1, "history": 1, "score": 0.5})
	require.NoError(t, err)
	state, err = schema.Merge(state, Update{"count": 2, "sum": 2, "history": []int{2, 3}, "score": 0.25})
	require.NoError(t, err)

	assert.Equal(t, 2, state["count"])
	assert.Equal(t, 3, state["sum"])
	assert.Equal(t, []int{1, 2, 3}, state["history"])
	assert.InDelta(t, 0.75, state["score"], 1e-9)
}

func TestSchema_Merge_DoesNotMutateInput(t *testing.T) {
	schema := scenarioSchema()
	before, err := schema.Init(Update{"history": []int{1}})
	require.NoError(t, err)

	after, err := schema.Merge(before, Update{"history": 2, "count": 9})
	require.NoError(t, err)

	assert.Equal(t, []int{1}, before["history"])
	assert.Equal(t, 0, before["count"])
	assert.Equal(t, []int{1, 2}, after["history"])

	// Appending again must not write into the earlier slice's backing array.
	a, err := schema.Merge(after, Update{"history": 3})
	require.NoError(t, err)
	b, err := schema.Merge(after, Update{"history": 4})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, a["history"])
	assert.Equal(t, []int{1, 2, 4}, b["history"])
}

func TestSchema_Merge_NumericConversion(t *testing.T) {
	schema := scenarioSchema()
	state, err := schema.Init(nil)
	require.NoError(t, err)

	// JSON-style float64 values convert to int fields.
	state, err = schema.Merge(state, Update{"count": float64(4), "sum": int64(2), "history": []any{float64(1), 2}})
	require.NoError(t, err)
	assert.Equal(t, 4, state["count"])
	assert.Equal(t, 2, state["sum"])
	assert.Equal(t, []int{1, 2}, state["history"])

	_, err = schema.Merge(state, Update{"count": 1.5})
	assert.ErrorIs(t, err, ErrFieldType)
}

func TestSchema_Merge_NumericRange(t *testing.T) {
	schema := NewSchema(
		NewField[int8]("small", Overwrite),
		NewField[uint]("unsigned", Overwrite),
		NewField[int]("int", Overwrite),
		NewField[float32]("f32", Overwrite),
		NewField[[]uint8]("bytes", Append),
		NewField[int16]("total", Add),
	)

	rejected := []struct {
		name   string
		update Update
	}{
		{"int above int8", Update{"small": 300}},
		{"int below int8", Update{"small": -129}},
		{"negative into uint", Update{"unsigned": -1}},
		{"negative float into uint", Update{"unsigned": float64(-2)}},
		{"float above int", Update{"int": 1e30}},
		{"positive infinity into int", Update{"int": math.Inf(1)}},
		{"negative infinity into int", Update{"int": math.Inf(-1)}},
		{"NaN into int", Update{"int": math.NaN()}},
		{"uint64 above int", Update{"int": uint64(math.MaxUint64)}},
		{"float64 above float32", Update{"f32": 1e300}},
		{"append element overflow", Update{"bytes": []int{1, 256}}},
		{"add delta overflow", Update{"total": 40000}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Init(tt.update)
			assert.ErrorIs(t, err, ErrFieldType)
		})
	}

	state, err := schema.Init(Update{
		"small":    float64(-128),
		"unsigned": float64(42),
		"int":      int64(math.MinInt64),
		"f32":      1.5,
		"bytes":    []any{float64(0), 255},
		"total":    int8(-5),
	})
	require.NoError(t, err)
	assert.Equal(t, int8(-128), state["small"])
	assert.Equal(t, uint(42), state["unsigned"])
	assert.Equal(t, math.MinInt, state["int"])
	assert.Equal(t, float32(1.5), state["f32"])
	assert.Equal(t, []uint8{0, 255}, state["bytes"])
	assert.Equal(t, int16(-5), state["total"])

	state, err = schema.Merge(state, Update{"total": 30000})
	require.NoError(t, err)
	_, err = schema.Merge(state, Update{"total": 30000})
	assert.ErrorIs(t, err, ErrFieldType, "sum overflows int16")
	assert.Equal(t, int16(29995), state["total"])
}

type copyDoc struct {
	Tags  []string
	Attrs map[string]int
	Next  *copyDoc
}

func TestSchema_Copy_IsDeep(t *testing.T) {
	schema := NewSchema(
		NewField[[]int]("history", Append),
		NewField[map[string]any]("meta", Overwrite),
		NewField[copyDoc]("doc", Overwrite),
		NewField[int]("count", Overwrite),
	)
	state, err := schema.Init(Update{
		"history": []int{1, 2},
		"meta":    map[string]any{"tags": []string{"a"}},
		"doc":     copyDoc{Tags: []string{"x"}, Attrs: map[string]int{"k": 1}, Next: &copyDoc{Tags: []string{"y"}}},
		"count":   3,
	})
	require.NoError(t, err)

	cp := schema.Copy(state)
	Value[[]int](cp, "history")[0] = 99
	Value[map[string]any](cp, "meta")["tags"].([]string)[0] = "changed"
	Value[map[string]any](cp, "meta")["new"] = true
	doc := Value[copyDoc](cp, "doc")
	doc.Tags[0] = "changed"
	doc.Attrs["k"] = 2
	doc.Next.Tags[0] = "changed"
	cp["count"] = 4

	assert.Equal(t, []int{1, 2}, state["history"])
	assert.Equal(t, map[string]any{"tags": []string{"a"}}, state["meta"])
	orig := Value[copyDoc](state, "doc")
	assert.Equal(t, []string{"x"}, orig.Tags)
	assert.Equal(t, map[string]int{"k": 1}, orig.Attrs)
	assert.Equal(t, []string{"y"}, orig.Next.Tags)
	assert.Equal(t, 3, state["count"])
}

func TestSchema_Merge_DoesNotKeepUpdateReferences(t *testing.T) {
	schema := scenarioSchema()
	meta := map[string]any{"k": "v"}
	state, err := schema.Init(Update{"meta": meta})
	require.NoError(t, err)

	meta["k"] = "changed"
	assert.Equal(t, map[string]any{"k": "v"}, state["meta"])
}

func TestSchema_Merge_Errors(t *testing.T) {
	schema := scenarioSchema()
	state, err := schema.Init(nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		update Update
		want   error
	}{
		{"undeclared field", Update{"missing": 1}, ErrUndeclaredField},
		{"overwrite type", Update{"note": 5}, ErrFieldType},
		{"append element type", Update{"history": "x"}, ErrFieldType},
		{"add type", Update{"sum": "1"}, ErrFieldType},
		{"add nil", Update{"sum": nil}, ErrFieldType},
		{"nil for value type", Update{"count": nil}, ErrFieldType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schema.Merge(state, tt.update)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var mergeErr *MergeError
			require.ErrorAs(t, err, &mergeErr)
			assert.Equal(t, state, got, "failed merge must return the original state")
		})
	}
}

func TestSchema_Merge_NilForReferenceTypes(t *testing.T) {
	schema := scenarioSchema()
	state, err := schema.Init(Update{"meta": map[string]any{"k": "v"}})
	require.NoError(t, err)

	state, err = schema.Merge(state, Update{"meta": nil, "history": nil})
	require.NoError(t, err)
	assert.Nil(t, state["meta"])
	assert.Equal(t, []int{}, state["history"])
}

func TestSchema_EncodeDecode_RoundTrip(t *testing.T) {
	schema := scenarioSchema()
	state, err := schema.Init(Update{
		"count":   5,
		"sum":     15,
		"history": []int{1, 2, 3, 4, 5},
		"note":    "done",
		"score":   1.5,
		"meta":    map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	data, err := schema.Encode(state)
	require.NoError(t, err)

	decoded, err := schema.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, state, decoded)
	assert.IsType(t, 0, decoded["count"])
	assert.IsType(t, []int{}, decoded["history"])
}

func TestSchema_Decode_MissingAndUnknownFields(t *testing.T) {
	schema := scenarioSchema()

	decoded, err := schema.Decode([]byte(`{"count":3}`))
	require.NoError(t, err)
	assert.Equal(t, 3, decoded["count"])
	assert.Equal(t, []int{}, decoded["history"])

	_, err = schema.Decode([]byte(`{"count":3,"bogus":1}`))
	assert.ErrorIs(t, err, ErrUndeclaredField)

	_, err = schema.Decode([]byte(`{"count":"three"}`))
	var mergeErr *MergeError
	require.ErrorAs(t, err, &mergeErr)
	assert.Equal(t, "count", mergeErr.Field)

	_, err = schema.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestValueAndLookup(t *testing.T) {
	s := State{"n": 3, "name": "x", "nil": nil}

	assert.Equal(t, 3, Value[int](s, "n"))
	assert.Equal(t, "", Value[string](s, "n"))
	assert.Equal(t, 0, Value[int](s, "missing"))

	v, ok := Lookup[string](s, "name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = Lookup[string](s, "nil")
	assert.False(t, ok)
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "overwrite", Overwrite.String())
	assert.Equal(t, "append", Append.String())
	assert.Equal(t, "add", Add.String())
	assert.Equal(t, "unknown", Policy(9).String())
}
