package reactive

// trackingContext is the evaluation state of a Runtime.
type trackingContext struct {
	// listener is the Computed or Effect currently recording reads.
	// The zero handle means reads are not tracked.
	listener handle

	// owner receives newly created signals, computeds, effects and owners.
	owner *Owner

	// depth is the number of nested evaluations on the stack.
	depth int
}

// contextGuard restores the tracking context captured by enter. Every
// enter is paired with a deferred exit so a panicking computation does
// not leave its handle installed as the listener.
type contextGuard struct {
	rt       *Runtime
	listener handle
	owner    *Owner
}

// enter installs listener as the active context, keeping the owner.
func (rt *Runtime) enter(listener handle) contextGuard {
	return rt.enterWith(listener, rt.ctx.owner)
}

// enterWith installs listener and owner as the active context.
func (rt *Runtime) enterWith(listener handle, owner *Owner) contextGuard {
	g := contextGuard{rt: rt, listener: rt.ctx.listener, owner: rt.ctx.owner}
	rt.ctx.listener = listener
	rt.ctx.owner = owner
	rt.ctx.depth++
	return g
}

// exit restores the context captured by enter.
func (g contextGuard) exit() {
	g.rt.ctx.listener = g.listener
	g.rt.ctx.owner = g.owner
	g.rt.ctx.depth--
}

// track records an edge from src to the active listener, if any.
func (rt *Runtime) track(src handle) {
	l := rt.ctx.listener
	if !l.valid() || l == src {
		return
	}
	rt.graph.link(src, l)
}

// Tracking reports whether reads are currently recorded as dependencies.
func (rt *Runtime) Tracking() bool {
	return rt.ctx.listener.valid()
}

// Untracked runs fn without recording any reads as dependencies.
//
// Example:
//
//	rt.Untracked(func() {
//	    // Reading count here won't subscribe the running effect
//	    fmt.Println("Current value:", count.Get())
//	})
//
// For single reads, Peek is shorter and clearer in intent.
func (rt *Runtime) Untracked(fn func()) {
	g := rt.enter(handle{})
	defer g.exit()
	fn()
}

// Untrack runs fn without tracking and returns its result.
func Untrack[T any](rt *Runtime, fn func() T) T {
	var out T
	rt.Untracked(func() {
		out = fn()
	})
	return out
}

// WithOwner runs fn with o as the owner of everything fn creates.
func (rt *Runtime) WithOwner(o *Owner, fn func()) {
	old := rt.ctx.owner
	rt.ctx.owner = o
	defer func() { rt.ctx.owner = old }()
	fn()
}

// Owner returns the owner currently receiving new nodes, or nil.
func (rt *Runtime) Owner() *Owner {
	return rt.ctx.owner
}
