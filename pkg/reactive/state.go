package reactive

import (
	"fmt"
	"sort"
)

// State is a record of named fields, each backed by exactly one Signal.
// Reading a field through Get subscribes the active computation to that
// field only.
type State struct {
	rt     *Runtime
	fields map[string]*Signal[any]
}

// NewState creates a State with one signal per entry of fields.
func NewState(rt *Runtime, fields map[string]any) *State {
	st := &State{
		rt:     rt,
		fields: make(map[string]*Signal[any], len(fields)),
	}
	for name, v := range fields {
		st.fields[name] = NewSignal[any](rt, v).WithLabel(name)
	}
	return st
}

// Has reports whether the field exists.
func (st *State) Has(name string) bool {
	_, ok := st.fields[name]
	return ok
}

// Get returns the field value, subscribing the active computation.
// Unknown fields read as nil.
func (st *State) Get(name string) any {
	if s, ok := st.fields[name]; ok {
		return s.Get()
	}
	return nil
}

// Set writes the field. Unknown fields return ErrUnknownField; State
// never grows after creation so each field keeps a single signal.
func (st *State) Set(name string, value any) error {
	s, ok := st.fields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	s.Set(value)
	return nil
}

// Signal returns the signal backing a field, or nil.
func (st *State) Signal(name string) *Signal[any] {
	return st.fields[name]
}

// Fields returns the field names in sorted order.
func (st *State) Fields() []string {
	names := make([]string, 0, len(st.fields))
	for name := range st.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies every field value without subscribing. It is intended
// for handing state to subscribers outside the reactive graph.
func (st *State) Snapshot() map[string]any {
	out := make(map[string]any, len(st.fields))
	for name, s := range st.fields {
		out[name] = s.Peek()
	}
	return out
}

// Patch writes several fields inside one batch.
func (st *State) Patch(values map[string]any) error {
	for name := range values {
		if !st.Has(name) {
			return fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
	}
	st.rt.Batch(func() {
		for name, v := range values {
			st.fields[name].Set(v)
		}
	})
	return nil
}

// Field returns a field value converted to T. The second result is false
// if the field is missing or holds another type.
func Field[T any](st *State, name string) (T, bool) {
	var zero T
	s, ok := st.fields[name]
	if !ok {
		return zero, false
	}
	v, ok := s.Get().(T)
	if !ok {
		return zero, false
	}
	return v, true
}
