package reconcile

import (
	"fmt"
	"reflect"

	"github.com/vango-dev/vbind/pkg/expr"
)

// KeyFunc returns the identity key of an item.
type KeyFunc func(item any, index int) (any, error)

// DuplicateKey replaces the key of an item whose key was already taken by
// an earlier item in the same pass.
type DuplicateKey struct {
	Key   any
	Index int
}

// String implements fmt.Stringer.
func (k DuplicateKey) String() string {
	return fmt.Sprintf("%v#%d", k.Key, k.Index)
}

// IndexKey keys items by position.
func IndexKey(_ any, index int) (any, error) {
	return index, nil
}

// FieldKey keys items by a path relative to the item, such as "id".
func FieldKey(path string) KeyFunc {
	return func(item any, _ int) (any, error) {
		return expr.Get(item, path)
	}
}

// exprKey evaluates src with the item and index variables in scope.
func exprKey(src string, ev expr.Evaluator, itemVar, indexVar string, parent expr.Scope) KeyFunc {
	if ev == nil {
		ev = expr.Path
	}
	return func(item any, index int) (any, error) {
		return ev.Evaluate(src, keyScope{
			itemVar:  itemVar,
			indexVar: indexVar,
			item:     item,
			index:    index,
			parent:   parent,
		})
	}
}

// keyScope exposes plain item and index values while a key is computed.
type keyScope struct {
	itemVar, indexVar string
	item              any
	index             int
	parent            expr.Scope
}

func (s keyScope) Lookup(name string) (any, bool) {
	switch {
	case name == s.itemVar:
		return s.item, true
	case s.indexVar != "" && name == s.indexVar:
		return s.index, true
	case s.parent != nil:
		return s.parent.Lookup(name)
	}
	return nil, false
}

// comparableKey reports whether k can be used as a map key.
func comparableKey(k any) bool {
	if k == nil {
		return true
	}
	return reflect.ValueOf(k).Comparable()
}

// KeyByField returns FieldKey(path), or IndexKey when path is empty or "-".
func KeyByField(path string) KeyFunc {
	if path == "" || path == "-" {
		return IndexKey
	}
	return FieldKey(path)
}
