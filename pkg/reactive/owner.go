package reactive

import "sync/atomic"

// ownerIDs issues Owner identifiers. IDs are monotonically increasing and
// never reused, across runtimes.
var ownerIDs uint64

// disposable is anything an Owner can tear down.
type disposable interface {
	dispose()
}

// Owner is a scope that owns reactive nodes. When an Owner is disposed,
// every signal, computed, effect and child owner created inside it is
// disposed too, and its registered cleanups run.
//
// Owners form a hierarchy mirroring the structure that created them; the
// reconciler gives every rendered item its own Owner.
type Owner struct {
	rt *Runtime
	id uint64

	// parent is nil for root owners.
	parent *Owner

	// children are child owners, in creation order.
	children []*Owner

	// nodes are the signals, computeds and effects owned by this scope.
	nodes []disposable

	// cleanups are manual cleanup functions registered via OnCleanup.
	cleanups []func()

	// values stores context values for this scope.
	values map[any]any

	disposed bool
}

// NewOwner creates an Owner that is a child of parent. A nil parent
// creates a root owner.
func (rt *Runtime) NewOwner(parent *Owner) *Owner {
	o := &Owner{
		rt:     rt,
		id:     atomic.AddUint64(&ownerIDs, 1),
		parent: parent,
	}
	if parent != nil {
		if parent.disposed {
			o.disposed = true
			return o
		}
		parent.children = append(parent.children, o)
	}
	return o
}

// Root runs fn inside a new root owner and returns it. Nothing created in
// fn is attached to the caller's owner or tracked by the caller.
func (rt *Runtime) Root(fn func(o *Owner)) *Owner {
	o := rt.NewOwner(nil)
	g := rt.enterWith(handle{}, o)
	defer g.exit()
	fn(o)
	return o
}

// ID returns the unique identifier of this Owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent Owner, or nil for a root owner.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed returns true if this Owner has been disposed.
func (o *Owner) IsDisposed() bool {
	return o.disposed
}

// Run runs fn with o as the runtime's current owner.
func (o *Owner) Run(fn func()) {
	o.rt.WithOwner(o, fn)
}

// own registers a node for disposal with this owner. Nodes created under
// a disposed owner are disposed immediately.
func (o *Owner) own(d disposable) {
	if o.disposed {
		d.dispose()
		return
	}
	o.nodes = append(o.nodes, d)
}

// OnCleanup registers fn to run when this Owner is disposed.
// On an already disposed Owner, fn runs immediately.
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed {
		fn()
		return
	}
	o.cleanups = append(o.cleanups, fn)
}

// OnCleanup registers fn with the runtime's current owner. It reports
// false when there is no current owner, in which case fn is not kept.
func OnCleanup(rt *Runtime, fn func()) bool {
	o := rt.ctx.owner
	if o == nil {
		return false
	}
	o.OnCleanup(fn)
	return true
}

// Provide stores a context value visible to this owner and its descendants.
func (o *Owner) Provide(key, value any) {
	if o.values == nil {
		o.values = make(map[any]any)
	}
	o.values[key] = value
}

// Lookup walks up the owner chain for a value stored with Provide.
func (o *Owner) Lookup(key any) (any, bool) {
	for cur := o; cur != nil; cur = cur.parent {
		if v, ok := cur.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Len returns the number of nodes, children and cleanups held by o.
func (o *Owner) Len() int {
	return len(o.nodes) + len(o.children) + len(o.cleanups)
}

// removeChild removes a child Owner from this Owner's children.
func (o *Owner) removeChild(child *Owner) {
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// Dispose disposes this Owner's children (last created first), then its
// nodes, then runs its cleanups in reverse registration order.
// After disposal the Owner cannot be used. Dispose is idempotent.
func (o *Owner) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	children := o.children
	o.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	nodes := o.nodes
	o.nodes = nil
	for _, d := range nodes {
		d.dispose()
	}

	cleanups := o.cleanups
	o.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	o.values = nil
}
