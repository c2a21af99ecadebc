package stategraph

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
)

// State is the set of named fields threaded through a run.
// Nodes receive a private copy; writing to it has no effect on the run.
type State map[string]any

// Update is a partial state produced by a node. Each key must be a field
// declared in the graph's Schema.
type Update map[string]any

// Clone returns a shallow copy of the state. Slice, map and pointer
// values stay shared; use Schema.Copy for a copy nodes may write to.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Lookup returns the field value as T, and false if it is missing or has
// a different type.
func Lookup[T any](s State, key string) (T, bool) {
	var zero T
	v, ok := s[key]
	if !ok || v == nil {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Value returns the field value as T, or the zero value of T.
//
// Example:
//
//	count := stategraph.Value[int](s, "count")
func Value[T any](s State, key string) T {
	v, _ := Lookup[T](s, key)
	return v
}

// Policy is the rule for combining a node's update into a field.
type Policy int

const (
	// Overwrite replaces the field with the new value.
	Overwrite Policy = iota

	// Append concatenates a slice (or appends a single element) to the field.
	Append

	// Add adds a numeric value to the field.
	Add
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	case Add:
		return "add"
	default:
		return "unknown"
	}
}

// Field declares one state field: its name, merge policy and Go type.
type Field struct {
	name   string
	policy Policy
	typ    reflect.Type
	// refs is set when values of typ can share memory and copies must
	// be deep.
	refs bool
}

// NewField declares a field of type T.
//
// Panics if name is empty, if policy is Append and T is not a slice,
// or if policy is Add and T is not an integer or float type.
//
// Example:
//
//	stategraph.NewField[int]("count", stategraph.Overwrite)
//	stategraph.NewField[[]int]("history", stategraph.Append)
//	stategraph.NewField[int]("sum", stategraph.Add)
func NewField[T any](name string, policy Policy) Field {
	if name == "" {
		panic("stategraph: field name cannot be empty")
	}
	typ := reflect.TypeFor[T]()
	switch policy {
	case Overwrite:
	case Append:
		if typ.Kind() != reflect.Slice {
			panic(fmt.Sprintf("stategraph: field %s: append policy requires a slice type, got %s", name, typ))
		}
	case Add:
		if !isNumeric(typ.Kind()) {
			panic(fmt.Sprintf("stategraph: field %s: add policy requires a numeric type, got %s", name, typ))
		}
	default:
		panic(fmt.Sprintf("stategraph: field %s: unknown policy %d", name, policy))
	}
	return Field{name: name, policy: policy, typ: typ, refs: hasReferences(typ)}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Policy returns the field's merge policy.
func (f Field) Policy() Policy { return f.policy }

// Type returns the field's declared Go type.
func (f Field) Type() reflect.Type { return f.typ }

// zero is the initial value of the field: an empty slice for Append
// fields, the type's zero value otherwise.
func (f Field) zero() any {
	if f.policy == Append {
		return reflect.MakeSlice(f.typ, 0, 0).Interface()
	}
	return reflect.Zero(f.typ).Interface()
}

// hasReferences reports whether values of t can share memory with a copy.
func hasReferences(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return hasReferences(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasReferences(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// copy returns a deep copy of a value of the field's type.
func (f Field) copy(v any) any {
	if v == nil || !f.refs {
		return v
	}
	return deepCopy(reflect.ValueOf(v)).Interface()
}

// deepCopy copies slices, maps, arrays, pointers and the exported fields
// of structs recursively. Channels and functions are shared.
func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		if !hasReferences(v.Type().Elem()) {
			reflect.Copy(out, v)
			return out
		}
		for i := range v.Len() {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := range v.Len() {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range v.NumField() {
			if f := out.Field(i); f.CanSet() {
				f.Set(deepCopy(v.Field(i)))
			}
		}
		return out
	}
	return v
}

func (f Field) merge(current, val any) (any, error) {
	switch f.policy {
	case Append:
		return f.appendValues(current, val)
	case Add:
		return f.add(current, val)
	default:
		return f.coerce(val)
	}
}

// coerce converts val to the declared type.
func (f Field) coerce(val any) (any, error) {
	if val == nil {
		switch f.typ.Kind() {
		case reflect.Interface, reflect.Slice, reflect.Map, reflect.Pointer:
			return reflect.Zero(f.typ).Interface(), nil
		}
		return nil, fmt.Errorf("%w: nil is not a valid %s", ErrFieldType, f.typ)
	}
	rv, err := convertTo(reflect.ValueOf(val), f.typ)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

func (f Field) appendValues(current, val any) (any, error) {
	elem := f.typ.Elem()
	out := reflect.MakeSlice(f.typ, 0, 0)

	if current != nil {
		cv := reflect.ValueOf(current)
		if cv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("%w: current value %s is not a slice", ErrFieldType, cv.Type())
		}
		for i := range cv.Len() {
			item, err := convertTo(cv.Index(i), elem)
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, item)
		}
	}

	if val == nil {
		return out.Interface(), nil
	}

	rv := reflect.ValueOf(val)
	if rv.Kind() == reflect.Slice && rv.Type() != elem {
		for i := range rv.Len() {
			item, err := convertTo(rv.Index(i), elem)
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, item)
		}
		return out.Interface(), nil
	}

	item, err := convertTo(rv, elem)
	if err != nil {
		return nil, err
	}
	return reflect.Append(out, item).Interface(), nil
}

func (f Field) add(current, val any) (any, error) {
	cur := reflect.Zero(f.typ)
	if current != nil {
		c, err := convertTo(reflect.ValueOf(current), f.typ)
		if err != nil {
			return nil, err
		}
		cur = c
	}
	if val == nil {
		return nil, fmt.Errorf("%w: cannot add nil to %s", ErrFieldType, f.typ)
	}
	delta, err := convertTo(reflect.ValueOf(val), f.typ)
	if err != nil {
		return nil, err
	}

	out := reflect.New(f.typ).Elem()
	overflow := func() error {
		return fmt.Errorf("%w: %v + %v overflows %s", ErrFieldType, cur.Interface(), delta.Interface(), f.typ)
	}
	switch {
	case cur.CanInt():
		a, b := cur.Int(), delta.Int()
		sum := a + b
		if (b > 0 && sum < a) || (b < 0 && sum > a) || out.OverflowInt(sum) {
			return nil, overflow()
		}
		out.SetInt(sum)
	case cur.CanUint():
		a := cur.Uint()
		sum := a + delta.Uint()
		if sum < a || out.OverflowUint(sum) {
			return nil, overflow()
		}
		out.SetUint(sum)
	case cur.CanFloat():
		sum := cur.Float() + delta.Float()
		if !math.IsInf(sum, 0) && !math.IsNaN(sum) && out.OverflowFloat(sum) {
			return nil, overflow()
		}
		out.SetFloat(sum)
	}
	return out.Interface(), nil
}

// convertTo returns rv as a value of typ. Assignable values are copied into
// typ; numeric values are converted when checkRange accepts them.
func convertTo(rv reflect.Value, typ reflect.Type) (reflect.Value, error) {
	// Unwrap values held in interfaces, e.g. elements of []any
	for rv.Kind() == reflect.Interface && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() || (rv.Kind() == reflect.Interface && rv.IsNil()) {
		return reflect.Zero(typ), nil
	}

	if rv.Type().AssignableTo(typ) {
		out := reflect.New(typ).Elem()
		out.Set(rv)
		return out, nil
	}

	if isNumeric(rv.Kind()) && isNumeric(typ.Kind()) {
		if err := checkRange(rv, typ); err != nil {
			return reflect.Value{}, err
		}
		return rv.Convert(typ), nil
	}

	return reflect.Value{}, fmt.Errorf("%w: got %s, want %s", ErrFieldType, rv.Type(), typ)
}

// checkRange rejects numeric conversions that would lose the value:
// fractions, infinities and NaN into integers, negatives into unsigned
// types and anything outside the target's range.
func checkRange(rv reflect.Value, typ reflect.Type) error {
	target := reflect.New(typ).Elem()
	overflow := func() error {
		return fmt.Errorf("%w: %v overflows %s", ErrFieldType, rv.Interface(), typ)
	}

	switch {
	case rv.CanFloat():
		f := rv.Float()
		switch {
		case isFloat(typ.Kind()):
			if !math.IsInf(f, 0) && !math.IsNaN(f) && target.OverflowFloat(f) {
				return overflow()
			}
			return nil
		case math.IsInf(f, 0) || math.IsNaN(f):
			return fmt.Errorf("%w: %v is not a valid %s", ErrFieldType, f, typ)
		case f != math.Trunc(f):
			return fmt.Errorf("%w: %v has a fractional part, want %s", ErrFieldType, f, typ)
		case target.CanInt():
			if f < math.MinInt64 || f >= math.MaxInt64 || target.OverflowInt(int64(f)) {
				return overflow()
			}
		case target.CanUint():
			if f < 0 || f >= math.MaxUint64 || target.OverflowUint(uint64(f)) {
				return overflow()
			}
		}
	case rv.CanInt():
		n := rv.Int()
		switch {
		case target.CanInt():
			if target.OverflowInt(n) {
				return overflow()
			}
		case target.CanUint():
			if n < 0 || target.OverflowUint(uint64(n)) {
				return overflow()
			}
		case target.CanFloat():
			if target.OverflowFloat(float64(n)) {
				return overflow()
			}
		}
	case rv.CanUint():
		n := rv.Uint()
		switch {
		case target.CanInt():
			if n > math.MaxInt64 || target.OverflowInt(int64(n)) {
				return overflow()
			}
		case target.CanUint():
			if target.OverflowUint(n) {
				return overflow()
			}
		case target.CanFloat():
			if target.OverflowFloat(float64(n)) {
				return overflow()
			}
		}
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

// Schema is the fixed set of fields and merge policies of a graph.
// A Schema is immutable once created and safe for concurrent use.
type Schema struct {
	fields map[string]Field
	order  []string
}

// NewSchema creates a schema from field declarations.
//
// Panics if a field is declared twice or was not created with NewField.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{
		fields: make(map[string]Field, len(fields)),
		order:  make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		if f.typ == nil {
			panic("stategraph: field must be created with NewField")
		}
		if _, exists := s.fields[f.name]; exists {
			panic(fmt.Sprintf("stategraph: duplicate field: %s", f.name))
		}
		s.fields[f.name] = f
		s.order = append(s.order, f.name)
	}
	return s
}

// Field returns the declaration of a field.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// Init returns a state holding every field's initial value with input
// merged on top according to each field's policy.
func (s *Schema) Init(input Update) (State, error) {
	state := make(State, len(s.fields))
	for _, name := range s.order {
		state[name] = s.fields[name].zero()
	}
	return s.Merge(state, input)
}

// Copy returns a deep copy of state: slice, map and pointer values of
// declared fields are copied, so writes to the copy never reach state.
func (s *Schema) Copy(state State) State {
	out := make(State, len(state))
	for key, v := range state {
		if f, ok := s.fields[key]; ok {
			out[key] = f.copy(v)
			continue
		}
		if v != nil {
			v = deepCopy(reflect.ValueOf(v)).Interface()
		}
		out[key] = v
	}
	return out
}

// Merge applies update to state and returns the new state.
// The input state is not modified. On error the original state is returned.
func (s *Schema) Merge(state State, update Update) (State, error) {
	next := state.Clone()
	for _, key := range slices.Sorted(maps.Keys(update)) {
		f, ok := s.fields[key]
		if !ok {
			return state, &MergeError{Field: key, Err: ErrUndeclaredField}
		}
		merged, err := f.merge(next[key], update[key])
		if err != nil {
			return state, &MergeError{Field: key, Err: err}
		}
		next[key] = f.copy(merged)
	}
	return next, nil
}

// Encode serializes state to JSON.
func (s *Schema) Encode(state State) ([]byte, error) {
	return json.Marshal(map[string]any(state))
}

// Decode deserializes JSON produced by Encode, restoring each field's
// declared Go type. Declared fields absent from data get their initial value.
func (s *Schema) Decode(data []byte) (State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	state := make(State, len(s.fields))
	for _, name := range s.order {
		f := s.fields[name]
		msg, ok := raw[name]
		if !ok {
			state[name] = f.zero()
			continue
		}
		ptr := reflect.New(f.typ)
		if err := json.Unmarshal(msg, ptr.Interface()); err != nil {
			return nil, &MergeError{Field: name, Err: err}
		}
		state[name] = ptr.Elem().Interface()
	}

	for name := range raw {
		if _, ok := s.fields[name]; !ok {
			return nil, &MergeError{Field: name, Err: ErrUndeclaredField}
		}
	}
	return state, nil
}
