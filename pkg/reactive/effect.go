package reactive

import "time"

// Effect is a reactive side effect that re-runs when its dependencies change.
//
// Effects run immediately when created and again whenever a signal or
// computed they read during their last run changes. The Cleanup returned
// by a run is called before the next run and when the effect is disposed.
type Effect struct {
	rt *Runtime
	h  handle

	// fn is the effect function.
	fn func() Cleanup

	// cleanup holds the cleanup returned by the last run.
	cleanup cleanupSlot

	// owner is the Owner that created this effect. It is reinstated as
	// the current owner during every run.
	owner *Owner

	label    string
	runs     int
	disposed bool
}

// EffectOption configures an Effect.
type EffectOption interface {
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// EffectLabel names the effect in logs and telemetry.
func EffectLabel(label string) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.label = label
	})
}

// Effect creates and runs an effect owned by the current owner.
//
// Example:
//
//	e := rt.Effect(func() reactive.Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { fmt.Println("Cleanup") }
//	})
//	defer e.Dispose()
func (rt *Runtime) Effect(fn func() Cleanup, opts ...EffectOption) *Effect {
	return CreateEffect(rt, fn, opts...)
}

// CreateEffect creates and runs an effect owned by the runtime's current owner.
func CreateEffect(rt *Runtime, fn func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		rt:    rt,
		fn:    fn,
		owner: rt.ctx.owner,
	}
	for _, opt := range opts {
		opt.applyEffect(e)
	}

	e.h = rt.graph.alloc(kindEffect, e.label)
	if n := rt.graph.get(e.h); n != nil {
		n.effect = e
	}
	if e.owner != nil {
		e.owner.own(e)
	}

	// The first run is a batch of its own: writes it makes are flushed
	// after it returns rather than re-entering it.
	rt.Batch(e.run)
	return e
}

// Watch creates an effect with no cleanup. It is shorthand for the common
// case of an effect that only reads and writes.
func (rt *Runtime) Watch(fn func(), opts ...EffectOption) *Effect {
	return CreateEffect(rt, func() Cleanup {
		fn()
		return nil
	}, opts...)
}

// run executes the effect function: the previous cleanup runs first and
// the previous dependency edges are replaced by the ones read this run.
func (e *Effect) run() {
	rt := e.rt
	n := rt.graph.get(e.h)
	if n == nil {
		return
	}
	n.flags &^= flagQueued

	e.cleanup.invoke()
	if e.disposed {
		// The cleanup disposed its own effect.
		return
	}
	rt.graph.unlinkSources(e.h)

	start := time.Now()
	n.flags |= flagRunning
	g := rt.enterWith(e.h, e.owner)
	defer func() {
		g.exit()
		if live := rt.graph.get(e.h); live != nil {
			live.flags &^= flagRunning
		}
	}()

	cleanup := e.fn()
	e.runs++
	if e.disposed {
		// Disposed from inside its own body: nothing will call it later.
		if cleanup != nil {
			cleanup()
		}
		return
	}
	e.cleanup.set(cleanup)
	rt.observer.EffectRan(e.label, time.Since(start))
}

// Dispose stops the effect, detaches its dependencies and runs its last
// cleanup. Calling Dispose more than once is a no-op.
func (e *Effect) Dispose() {
	e.dispose()
}

func (e *Effect) dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.rt.graph.release(e.h)
	e.cleanup.invoke()
}

// Disposed reports whether the effect has been disposed.
func (e *Effect) Disposed() bool {
	return e.disposed
}

// Runs returns how many times the effect function has run.
func (e *Effect) Runs() int {
	return e.runs
}

// Label returns the effect's label.
func (e *Effect) Label() string {
	return e.label
}

// Dependencies returns the number of nodes the effect read in its last run.
func (e *Effect) Dependencies() int {
	if n := e.rt.graph.get(e.h); n != nil {
		return len(n.sources)
	}
	return 0
}
