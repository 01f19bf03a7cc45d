// Package expr evaluates binding expressions against a variable scope.
//
// The reconciler only needs a pluggable "evaluate expression in scope"
// capability; hosts with a richer expression language supply their own
// Evaluator. Path is the default: dotted field access with optional
// integer indexes, such as "item.id" or "row.cells[2].label".
package expr

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Scope resolves variable names during evaluation.
type Scope interface {
	Lookup(name string) (any, bool)
}

// Vars is a Scope backed by a map.
type Vars map[string]any

// Lookup implements Scope.
func (v Vars) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}

// Evaluator evaluates an expression string in a scope.
type Evaluator interface {
	Evaluate(expr string, scope Scope) (any, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(expr string, scope Scope) (any, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(expr string, scope Scope) (any, error) {
	return f(expr, scope)
}

var (
	// ErrUndefined is returned when the first path segment is not in scope.
	ErrUndefined = errors.New("expr: undefined variable")

	// ErrNotTraversable is returned when a segment cannot be resolved on
	// the current value.
	ErrNotTraversable = errors.New("expr: cannot traverse value")

	// ErrSyntax is returned for malformed expressions.
	ErrSyntax = errors.New("expr: syntax error")
)

// PathError describes a failed evaluation.
type PathError struct {
	Expr    string
	Segment string
	Err     error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("%v in %q at %q", e.Err, e.Expr, e.Segment)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}

// Path is the default Evaluator.
var Path Evaluator = EvaluatorFunc(EvaluatePath)

// segment is one step of a path: a field name or an index.
type segment struct {
	name  string
	index int
	isIdx bool
}

func (s segment) String() string {
	if s.isIdx {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.name
}

// parse splits a path into segments.
func parse(src string) ([]segment, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, &PathError{Expr: src, Err: ErrSyntax}
	}

	var segs []segment
	for _, part := range strings.Split(src, ".") {
		if part == "" {
			return nil, &PathError{Expr: src, Segment: part, Err: ErrSyntax}
		}
		name := part
		rest := ""
		if i := strings.IndexByte(part, '['); i >= 0 {
			name, rest = part[:i], part[i:]
		}
		if name != "" {
			segs = append(segs, segment{name: name})
		} else if len(segs) == 0 {
			return nil, &PathError{Expr: src, Segment: part, Err: ErrSyntax}
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return nil, &PathError{Expr: src, Segment: part, Err: ErrSyntax}
			}
			n, err := strconv.Atoi(strings.TrimSpace(rest[1:end]))
			if err != nil {
				return nil, &PathError{Expr: src, Segment: part, Err: ErrSyntax}
			}
			segs = append(segs, segment{index: n, isIdx: true})
			rest = rest[end+1:]
		}
	}
	return segs, nil
}

// EvaluatePath resolves a dotted path. The first segment names a scope
// variable; later segments select map keys, struct fields (by name,
// case-insensitive name, or json tag) and slice or array indexes.
// A nil value part-way through a path evaluates to nil.
func EvaluatePath(src string, scope Scope) (any, error) {
	segs, err := parse(src)
	if err != nil {
		return nil, err
	}

	root, ok := scope.Lookup(segs[0].name)
	if !ok {
		return nil, &PathError{Expr: src, Segment: segs[0].name, Err: ErrUndefined}
	}

	cur := root
	for _, seg := range segs[1:] {
		if cur == nil {
			return nil, nil
		}
		next, ok := step(reflect.ValueOf(cur), seg)
		if !ok {
			return nil, &PathError{Expr: src, Segment: seg.String(), Err: ErrNotTraversable}
		}
		cur = next
	}
	return cur, nil
}

// Get resolves a path relative to value rather than a scope. It is used
// for key fields such as "id" applied directly to an item.
func Get(value any, path string) (any, error) {
	segs, err := parse(path)
	if err != nil {
		return nil, err
	}
	cur := value
	for _, seg := range segs {
		if cur == nil {
			return nil, nil
		}
		next, ok := step(reflect.ValueOf(cur), seg)
		if !ok {
			return nil, &PathError{Expr: path, Segment: seg.String(), Err: ErrNotTraversable}
		}
		cur = next
	}
	return cur, nil
}

// step applies one segment to v.
func step(v reflect.Value, seg segment) (any, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}

	if seg.isIdx {
		switch v.Kind() {
		case reflect.Slice, reflect.Array, reflect.String:
			if seg.index < 0 || seg.index >= v.Len() {
				return nil, true
			}
			return v.Index(seg.index).Interface(), true
		}
		return nil, false
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := v.MapIndex(reflect.ValueOf(seg.name).Convert(v.Type().Key()))
		if !mv.IsValid() {
			return nil, true
		}
		return mv.Interface(), true
	case reflect.Struct:
		f, ok, err := structField(v, seg.name)
		if err != nil {
			// Promoted through a nil embedded pointer.
			return nil, true
		}
		if ok {
			return f.Interface(), true
		}
		return nil, false
	case reflect.Slice, reflect.Array, reflect.String:
		if seg.name == "length" || seg.name == "len" {
			return v.Len(), true
		}
	}
	return nil, false
}

// structField finds an exported field by exact name, case-insensitive
// name, or json tag. It returns an error when the field is promoted
// through a nil embedded pointer.
func structField(v reflect.Value, name string) (reflect.Value, bool, error) {
	t := v.Type()
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		fv, err := v.FieldByIndexErr(f.Index)
		if err != nil {
			return reflect.Value{}, false, err
		}
		return fv, true, nil
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name || strings.EqualFold(f.Name, name) {
			return v.Field(i), true, nil
		}
	}
	return reflect.Value{}, false, nil
}
