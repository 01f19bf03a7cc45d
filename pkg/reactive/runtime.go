package reactive

import (
	"log/slog"
	"time"
)

// Observer receives timing and volume notifications from a Runtime.
// Implementations must not read or write reactive state.
type Observer interface {
	// EffectRan is called after each effect run.
	EffectRan(label string, d time.Duration)

	// ComputedEvaluated is called after each computed evaluation.
	ComputedEvaluated(label string, d time.Duration)

	// Flushed is called when a flush completes or yields to the budget.
	Flushed(runs int, d time.Duration)

	// BudgetExceeded is called when a flush stops with effects still queued.
	BudgetExceeded(pending int)
}

// NopObserver discards every notification.
type NopObserver struct{}

func (NopObserver) EffectRan(string, time.Duration)         {}
func (NopObserver) ComputedEvaluated(string, time.Duration) {}
func (NopObserver) Flushed(int, time.Duration)              {}
func (NopObserver) BudgetExceeded(int)                      {}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for dropped writes and budget warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithObserver installs an Observer for runtime telemetry.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) {
		if o != nil {
			rt.observer = o
		}
	}
}

// WithStrict makes contract violations panic instead of being dropped.
// With strict mode on, writing a disposed signal panics with ErrDisposed.
func WithStrict(strict bool) Option {
	return func(rt *Runtime) {
		rt.strict = strict
	}
}

// WithEffectBudget limits the number of effect runs per flush.
// Zero disables the limit.
func WithEffectBudget(maxRuns int) Option {
	return func(rt *Runtime) {
		rt.budget = newEffectBudget(maxRuns)
	}
}

// Stats is a snapshot of runtime counters.
type Stats struct {
	Nodes       int
	Pending     int
	BatchDepth  int
	Flushes     uint64
	EffectRuns  uint64
	BudgetTrips uint64
}

// Runtime owns a dependency graph and the scheduler that propagates
// changes through it.
type Runtime struct {
	graph graph
	ctx   trackingContext

	// batchDepth tracks nested batches and implicit write batches.
	batchDepth int

	// flushing is set while the queue is drained; writes made by running
	// effects append to the queue instead of starting a nested flush.
	flushing bool

	// queue holds effects to run, in first-enqueued order.
	queue []handle

	budget   *effectBudget
	logger   *slog.Logger
	observer Observer
	strict   bool

	flushes     uint64
	effectRuns  uint64
	budgetTrips uint64
}

// DefaultEffectBudget bounds runaway effect cascades, such as an effect
// that writes a signal it also reads.
const DefaultEffectBudget = 100_000

// NewRuntime creates an empty Runtime.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		budget:   newEffectBudget(DefaultEffectBudget),
		logger:   slog.Default(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// Strict reports whether contract violations panic.
func (rt *Runtime) Strict() bool {
	return rt.strict
}

// Stats returns a snapshot of the runtime counters.
func (rt *Runtime) Stats() Stats {
	return Stats{
		Nodes:       rt.graph.live,
		Pending:     len(rt.queue),
		BatchDepth:  rt.batchDepth,
		Flushes:     rt.flushes,
		EffectRuns:  rt.effectRuns,
		BudgetTrips: rt.budgetTrips,
	}
}

// notify propagates a change of src. The marking pass runs inside an
// implicit batch so no effect observes a partially marked graph.
func (rt *Runtime) notify(src handle) {
	n := rt.graph.get(src)
	if n == nil {
		return
	}
	n.version++

	rt.batchDepth++
	completed := false
	defer func() { rt.endBatch(completed) }()

	rt.markObservers(n)
	completed = true
}

// markObservers marks computed observers dirty and enqueues effects.
// A computed that was already dirty has already marked its own observers.
func (rt *Runtime) markObservers(n *node) {
	for _, oh := range n.observers {
		o := rt.graph.get(oh)
		if o == nil {
			continue
		}
		switch o.kind {
		case kindComputed:
			if o.flags&flagDirty == 0 {
				o.flags |= flagDirty
				rt.markObservers(o)
			}
		case kindEffect:
			rt.enqueue(oh, o)
		}
	}
}

// enqueue schedules an effect once until it runs.
func (rt *Runtime) enqueue(h handle, n *node) {
	if n.flags&flagQueued != 0 {
		return
	}
	n.flags |= flagQueued
	rt.queue = append(rt.queue, h)
}

// endBatch closes one batch level and flushes at the outermost level.
// A batch whose body panicked leaves its queue pending.
func (rt *Runtime) endBatch(completed bool) {
	rt.batchDepth--
	if rt.batchDepth == 0 && completed && !rt.flushing {
		rt.flush()
	}
}

// Flush runs every queued effect now. Writes flush automatically, so it
// is only needed after a flush stopped early: at the effect budget, or
// because an effect panicked. In both cases the effects behind the
// stopping point stay queued and otherwise run with the next flush,
// whichever write triggers it.
func (rt *Runtime) Flush() {
	if rt.batchDepth > 0 || rt.flushing {
		return
	}
	rt.flush()
}

// flush drains the queue in order. Effects enqueued by running effects
// are appended and run in the same flush. A panicking effect aborts the
// flush and leaves the rest of the queue pending.
func (rt *Runtime) flush() {
	if len(rt.queue) == 0 {
		return
	}

	rt.flushing = true
	start := time.Now()
	runs := 0
	rt.budget.reset()

	defer func() {
		rt.flushing = false
		rt.flushes++
		rt.observer.Flushed(runs, time.Since(start))
	}()

	for len(rt.queue) > 0 {
		h := rt.queue[0]
		n := rt.graph.get(h)
		if n == nil {
			rt.queue = rt.queue[1:]
			continue
		}

		if err := rt.budget.check(); err != nil {
			rt.budgetTrips++
			rt.logger.Warn("reactive: effect budget exceeded, deferring queued effects",
				"pending", len(rt.queue),
				"limit", rt.budget.limit,
			)
			rt.observer.BudgetExceeded(len(rt.queue))
			return
		}

		rt.queue = rt.queue[1:]
		n.effect.run()
		runs++
		rt.effectRuns++
	}
	rt.queue = rt.queue[:0]
}

// Batch groups writes so dependent effects run once, after the outermost
// batch returns, observing only the final values.
//
// Batches can be nested. If fn, or an effect run by the closing flush,
// panics, the queued effects stay pending and the panic propagates; call
// Flush to run them.
//
// Example:
//
//	rt.Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	})
//	// Effects reading both names run once
func (rt *Runtime) Batch(fn func()) {
	rt.batchDepth++
	completed := false
	defer func() { rt.endBatch(completed) }()

	fn()
	completed = true
}

// Batch runs fn inside a batch and returns its result.
func Batch[T any](rt *Runtime, fn func() T) T {
	var out T
	rt.Batch(func() {
		out = fn()
	})
	return out
}

// InBatch reports whether a batch is open.
func (rt *Runtime) InBatch() bool {
	return rt.batchDepth > 0
}
