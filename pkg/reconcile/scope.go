package reconcile

import (
	"github.com/vango-dev/vbind/pkg/expr"
	"github.com/vango-dev/vbind/pkg/reactive"
)

// Scope is the per-item binding scope handed to the bind callback.
// Lookups of the item and index variables read their signals, so they are
// tracked by whatever effect performs them.
type Scope struct {
	itemVar  string
	indexVar string
	item     *reactive.Signal[any]
	index    *reactive.Signal[int]
	pos      *int
	parent   expr.Scope
	eval     expr.Evaluator
}

// Lookup implements expr.Scope.
func (s *Scope) Lookup(name string) (any, bool) {
	switch {
	case name == s.itemVar:
		return s.item.Get(), true
	case s.indexVar != "" && name == s.indexVar:
		return s.Index(), true
	case s.parent != nil:
		return s.parent.Lookup(name)
	}
	return nil, false
}

// Item returns the current item value.
func (s *Scope) Item() any {
	return s.item.Get()
}

// Index returns the current position. It is tracked only when an index
// variable is configured.
func (s *Scope) Index() int {
	if s.index != nil {
		return s.index.Get()
	}
	return *s.pos
}

// ItemSignal returns the signal holding the item value.
func (s *Scope) ItemSignal() reactive.Readable[any] {
	return s.item
}

// IndexSignal returns the signal holding the position, or nil when no
// index variable is configured.
func (s *Scope) IndexSignal() reactive.Readable[int] {
	if s.index == nil {
		return nil
	}
	return s.index
}

// Eval evaluates expression in this scope with the reconciler's evaluator.
func (s *Scope) Eval(expression string) (any, error) {
	return s.eval.Evaluate(expression, s)
}
