package reactive

import "time"

// Computed is a cached derivation that tracks its dependencies.
// When any dependency changes the cached value is invalidated and the
// function re-runs on the next read.
//
// Computeds are lazy: the function never runs except to answer a read,
// and several writes between reads cause a single re-evaluation.
//
// Computeds can be read by other computeds and effects, building chains
// of derived values.
type Computed[T any] struct {
	rt *Runtime
	h  handle

	// fn computes the value.
	fn func() T

	// value is the cached value, valid while the node is not dirty.
	value T

	equal    func(T, T) bool
	label    string
	disposed bool
}

// NewComputed creates a computed with the given function. The function is
// not run until the first read.
func NewComputed[T any](rt *Runtime, fn func() T) *Computed[T] {
	c := &Computed[T]{
		rt: rt,
		h:  rt.graph.alloc(kindComputed, ""),
		fn: fn,
	}
	if n := rt.graph.get(c.h); n != nil {
		n.flags |= flagDirty
	}
	if o := rt.ctx.owner; o != nil {
		o.own(c)
	}
	return c
}

// Get returns the value, re-evaluating if stale, and subscribes the
// active computation. Reading a computed from inside its own evaluation
// panics with a *CycleError.
func (c *Computed[T]) Get() T {
	n := c.rt.graph.get(c.h)
	if n == nil {
		return c.value
	}
	c.refresh(n)
	c.rt.track(c.h)
	return c.value
}

// Peek returns the value without subscribing. It still re-evaluates a
// stale value.
func (c *Computed[T]) Peek() T {
	n := c.rt.graph.get(c.h)
	if n == nil {
		return c.value
	}
	c.refresh(n)
	return c.value
}

// Dirty reports whether the next read will re-evaluate.
func (c *Computed[T]) Dirty() bool {
	n := c.rt.graph.get(c.h)
	return n != nil && n.flags&flagDirty != 0
}

// Dispose detaches the computed from the graph. Later reads return the
// last cached value without tracking.
func (c *Computed[T]) Dispose() {
	c.dispose()
}

func (c *Computed[T]) dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.rt.graph.release(c.h)
}

// WithEquals sets the equality function used to decide whether a
// re-evaluation changed the value.
func (c *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	c.equal = fn
	return c
}

// WithLabel names the computed in logs, cycle errors and telemetry.
func (c *Computed[T]) WithLabel(label string) *Computed[T] {
	c.label = label
	if n := c.rt.graph.get(c.h); n != nil {
		n.label = label
	}
	return c
}

// Version returns the number of times the computed value changed.
func (c *Computed[T]) Version() uint64 {
	if n := c.rt.graph.get(c.h); n != nil {
		return n.version
	}
	return 0
}

// refresh re-evaluates n if it is stale.
func (c *Computed[T]) refresh(n *node) {
	if n.flags&flagRunning != 0 {
		panic(&CycleError{Label: c.label})
	}
	if n.flags&flagDirty == 0 {
		return
	}
	c.evaluate(n)
}

// evaluate runs fn with this computed as the listener, replacing its
// previous dependency edges. A panicking fn leaves the node dirty.
func (c *Computed[T]) evaluate(n *node) {
	rt := c.rt
	start := time.Now()

	rt.graph.unlinkSources(c.h)
	n.flags |= flagRunning
	g := rt.enter(c.h)
	defer func() {
		g.exit()
		n.flags &^= flagRunning
	}()

	value := c.fn()

	first := n.version == 0
	if first || !c.equals(c.value, value) {
		c.value = value
		n.version++
	}
	n.flags &^= flagDirty
	rt.observer.ComputedEvaluated(c.label, time.Since(start))
}

func (c *Computed[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return identical(a, b)
}

func (c *Computed[T]) isComputed() {}
