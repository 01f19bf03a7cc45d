// Package reactive provides the fine-grained reactive core for vbind.
//
// Dependencies are discovered at run time: reading a Signal or Computed
// while a Computed or Effect is evaluating records an edge, and the next
// evaluation replaces the previous edge set entirely.
//
// All state lives in a Runtime. There is no package-level tracking state,
// so independent runtimes can coexist in one process.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	rt := reactive.NewRuntime()
//	count := reactive.NewSignal(rt, 0)
//	value := count.Get()  // Read (subscribes the active computation)
//	count.Set(5)          // Write (notifies subscribers)
//
// Computed[T] is a lazily evaluated, memoized derivation:
//
//	doubled := reactive.NewComputed(rt, func() int { return count.Get() * 2 })
//	value := doubled.Get()  // Re-evaluates only after a dependency changed
//
// Effect runs side effects when dependencies change:
//
//	e := rt.Effect(func() reactive.Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { /* cleanup */ }
//	})
//	defer e.Dispose()
//
// # Batching
//
// Writes inside a batch are coalesced; every affected effect runs once
// after the outermost batch returns and observes the final values:
//
//	rt.Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})
//
// # Thread Safety
//
// A Runtime is not safe for concurrent use. Hosts that receive input from
// several goroutines must serialize every read and write onto one
// goroutine, as pkg/live does with its event loop.
package reactive
