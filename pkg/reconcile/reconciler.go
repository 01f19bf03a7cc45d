package reconcile

import (
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/vango-dev/vbind/pkg/expr"
	"github.com/vango-dev/vbind/pkg/reactive"
)

// BindFunc wires a freshly created node to its item. It runs untracked
// inside the item's owner, so effects it creates live exactly as long as
// the item.
type BindFunc[N comparable] func(node N, scope *Scope, item *RenderedItem[N])

// Stats counts the operations of one pass.
type Stats struct {
	Created int
	Reused  int
	Moved   int
	Removed int
	Updated int
}

// Changed reports whether the pass touched the target.
func (s Stats) Changed() bool {
	return s.Created+s.Moved+s.Removed > 0
}

// RenderedItem is the live record of one key.
type RenderedItem[N comparable] struct {
	key      any
	value    any
	index    int
	node     N
	owner    *reactive.Owner
	itemSig  *reactive.Signal[any]
	indexSig *reactive.Signal[int]
	scope    *Scope
}

// Key returns the item key.
func (it *RenderedItem[N]) Key() any { return it.key }

// Value returns the item value from the latest pass.
func (it *RenderedItem[N]) Value() any { return it.value }

// Index returns the item position from the latest pass.
func (it *RenderedItem[N]) Index() int { return it.index }

// Node returns the target node.
func (it *RenderedItem[N]) Node() N { return it.node }

// Owner returns the owner holding the item's effects and cleanups.
func (it *RenderedItem[N]) Owner() *reactive.Owner { return it.owner }

// Scope returns the item's binding scope.
func (it *RenderedItem[N]) Scope() *Scope { return it.scope }

// OnCleanup registers fn to run when the item is removed or the
// reconciler is disposed.
func (it *RenderedItem[N]) OnCleanup(fn func()) {
	it.owner.OnCleanup(fn)
}

// Reconciler keeps a Target in step with an ordered collection.
// It is not safe for concurrent use.
type Reconciler[N comparable] struct {
	rt     *reactive.Runtime
	target Target[N]
	cfg    settings
	bind   BindFunc[N]
	key    KeyFunc
	logger *slog.Logger

	owner  *reactive.Owner
	effect *reactive.Effect

	items  map[any]*RenderedItem[N]
	order  []any
	last   Stats
	passes int

	disposed bool
}

// New creates a reconciler over target. Nothing is rendered until Start
// or Reconcile is called.
func New[N comparable](rt *reactive.Runtime, target Target[N], opts ...Option) *Reconciler[N] {
	cfg := defaults()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Reconciler[N]{
		rt:     rt,
		target: target,
		cfg:    cfg,
		logger: cfg.logger.With("reconciler", cfg.label),
		owner:  rt.NewOwner(rt.Owner()),
		items:  make(map[any]*RenderedItem[N]),
	}

	if cfg.bind != nil {
		fn, ok := cfg.bind.(BindFunc[N])
		if !ok {
			panic(fmt.Sprintf("reconcile: bind callback %T does not match node type", cfg.bind))
		}
		r.bind = fn
	}

	switch {
	case cfg.key != nil:
		r.key = cfg.key
	case cfg.keyExpr != "":
		r.key = exprKey(cfg.keyExpr, cfg.evaluator, cfg.itemVar, cfg.indexVar, cfg.parent)
	default:
		r.key = IndexKey
	}

	// Disposing the enclosing owner tears the reconciler down as Dispose does.
	r.owner.OnCleanup(func() {
		r.clear(&Stats{})
		r.disposed = true
	})
	return r
}

// Start runs a pass now and again whenever a signal read by the source
// function changes. Key errors are raised as panics to the writer that
// triggered the pass. Start without a source is a no-op.
func (r *Reconciler[N]) Start() *Reconciler[N] {
	if r.effect != nil || r.disposed || r.cfg.source == nil {
		return r
	}
	r.owner.Run(func() {
		r.effect = r.rt.Effect(func() reactive.Cleanup {
			list := r.cfg.source()
			if err := r.pass(list); err != nil {
				panic(err)
			}
			return nil
		}, reactive.EffectLabel(r.cfg.label))
	})
	return r
}

// Reconcile runs one pass against list. A value that is not a slice or
// array clears every item. Key errors abort the pass and leave the
// previous state untouched.
func (r *Reconciler[N]) Reconcile(list any) error {
	if r.disposed {
		return fmt.Errorf("reconcile: %w", reactive.ErrDisposed)
	}
	return reactive.Batch(r.rt, func() error {
		return r.pass(list)
	})
}

// Dispose removes every node, runs every item cleanup and stops the
// source effect. It is idempotent.
func (r *Reconciler[N]) Dispose() {
	if r.disposed {
		return
	}
	r.owner.Dispose()
}

// Disposed reports whether the reconciler has been disposed.
func (r *Reconciler[N]) Disposed() bool {
	return r.disposed
}

// Stats returns the counts of the latest pass.
func (r *Reconciler[N]) Stats() Stats {
	return r.last
}

// Passes returns the number of completed passes.
func (r *Reconciler[N]) Passes() int {
	return r.passes
}

// Len returns the number of live items.
func (r *Reconciler[N]) Len() int {
	return len(r.order)
}

// Keys returns the live keys in order.
func (r *Reconciler[N]) Keys() []any {
	out := make([]any, len(r.order))
	copy(out, r.order)
	return out
}

// Items returns the live items in order.
func (r *Reconciler[N]) Items() []*RenderedItem[N] {
	out := make([]*RenderedItem[N], 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.items[k])
	}
	return out
}

// Lookup returns the item for key.
func (r *Reconciler[N]) Lookup(key any) (*RenderedItem[N], bool) {
	if !comparableKey(key) {
		return nil, false
	}
	it, ok := r.items[key]
	return it, ok
}

// pass is one reconciliation. It must run inside a batch or an effect.
func (r *Reconciler[N]) pass(list any) error {
	start := time.Now()
	var stats Stats

	v := reflect.ValueOf(list)
	for v.Kind() == reflect.Pointer && !v.IsNil() && v.Elem().Kind() == reflect.Slice {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		if list != nil {
			r.diagnose(Diagnostic{
				Code:    CodeNotList,
				Message: fmt.Sprintf("source is %T, not a list", list),
				Index:   -1,
			})
		}
		r.clear(&stats)
		r.finish(stats, start)
		return nil
	}

	n := v.Len()
	values := make([]any, n)
	keys := make([]any, n)
	seen := make(map[any]int, n)
	for i := 0; i < n; i++ {
		item := v.Index(i).Interface()
		values[i] = item

		k, err := r.keyOf(item, i)
		if err != nil {
			return fmt.Errorf("reconcile: key for index %d: %w", i, err)
		}
		if !comparableKey(k) {
			r.diagnose(Diagnostic{
				Code:    CodeUncomparableKey,
				Message: fmt.Sprintf("key of type %T cannot be compared; using position", k),
				Index:   i,
			})
			k = i
		}
		if first, dup := seen[k]; dup {
			r.diagnose(Diagnostic{
				Code:    CodeDuplicateKey,
				Message: fmt.Sprintf("duplicate key %v (first at index %d)", k, first),
				Key:     k,
				Index:   i,
			})
			k = DuplicateKey{Key: k, Index: i}
		} else {
			seen[k] = i
		}
		keys[i] = k
	}

	next := make(map[any]*RenderedItem[N], n)
	for _, k := range keys {
		next[k] = nil
	}
	for _, k := range r.order {
		if _, keep := next[k]; !keep {
			r.remove(r.items[k])
			delete(r.items, k)
			stats.Removed++
		}
	}

	cursor := r.target.Anchor()
	for i, k := range keys {
		it, ok := r.items[k]
		if ok {
			r.reuse(it, values[i], i, &stats)
			if r.target.Next(cursor) != it.node {
				r.target.InsertAfter(cursor, it.node)
				stats.Moved++
			}
			stats.Reused++
		} else {
			it = r.create(k, values[i], i)
			r.target.InsertAfter(cursor, it.node)
			stats.Created++
		}
		next[k] = it
		cursor = it.node
	}

	r.items = next
	r.order = keys
	r.finish(stats, start)
	return nil
}

func (r *Reconciler[N]) keyOf(item any, index int) (k any, err error) {
	r.rt.Untracked(func() {
		k, err = r.key(item, index)
	})
	return k, err
}

func (r *Reconciler[N]) reuse(it *RenderedItem[N], value any, index int, stats *Stats) {
	if !reactive.Identical(it.value, value) {
		it.value = value
		it.itemSig.Set(value)
		stats.Updated++
	}
	if it.index != index {
		it.index = index
		if it.indexSig != nil {
			it.indexSig.Set(index)
		}
	}
}

func (r *Reconciler[N]) create(key, value any, index int) *RenderedItem[N] {
	it := &RenderedItem[N]{
		key:   key,
		value: value,
		index: index,
		node:  r.target.CreateNode(r.cfg.template),
		owner: r.rt.NewOwner(r.owner),
	}

	r.rt.Untracked(func() {
		it.owner.Run(func() {
			it.itemSig = reactive.NewSignal[any](r.rt, value)
			if r.cfg.indexVar != "" {
				it.indexSig = reactive.NewSignal(r.rt, index)
			}
			it.scope = &Scope{
				itemVar:  r.cfg.itemVar,
				indexVar: r.cfg.indexVar,
				item:     it.itemSig,
				index:    it.indexSig,
				pos:      &it.index,
				parent:   r.cfg.parent,
				eval:     r.cfg.evaluator,
			}
			if r.bind != nil {
				r.bind(it.node, it.scope, it)
			}
		})
	})
	return it
}

func (r *Reconciler[N]) remove(it *RenderedItem[N]) {
	it.owner.Dispose()
	r.target.Remove(it.node)
}

func (r *Reconciler[N]) clear(stats *Stats) {
	for _, k := range r.order {
		r.remove(r.items[k])
		stats.Removed++
	}
	r.items = make(map[any]*RenderedItem[N])
	r.order = nil
}

func (r *Reconciler[N]) finish(stats Stats, start time.Time) {
	r.last = stats
	r.passes++
	d := time.Since(start)
	r.cfg.observer.Reconciled(r.cfg.label, stats, d)
	if stats.Changed() {
		r.logger.Debug("reconciled",
			"created", stats.Created,
			"moved", stats.Moved,
			"removed", stats.Removed,
			"updated", stats.Updated,
			"duration", d)
	}
}

func (r *Reconciler[N]) diagnose(d Diagnostic) {
	r.logger.Warn("reconcile diagnostic",
		"code", d.Code,
		"message", d.Message,
		"key", d.Key,
		"index", d.Index)
	r.cfg.observer.Diagnosed(r.cfg.label, d)
	if r.cfg.onDiagnostic != nil {
		r.cfg.onDiagnostic(d)
	}
}

var _ expr.Scope = (*Scope)(nil)
