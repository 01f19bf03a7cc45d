package reactive

// Cleanup is a function returned by effects to release resources.
// It is called before the effect re-runs and when the effect is disposed.
type Cleanup func()

// cleanupSlot holds at most one pending cleanup. take empties the slot
// before the callback runs, so a cleanup that panics or re-enters the
// runtime is still never invoked twice.
type cleanupSlot struct {
	fn Cleanup
}

// set stores fn, replacing any previous callback without invoking it.
func (c *cleanupSlot) set(fn Cleanup) {
	c.fn = fn
}

// take removes and returns the stored callback.
func (c *cleanupSlot) take() Cleanup {
	fn := c.fn
	c.fn = nil
	return fn
}

// invoke runs and clears the stored callback, if any.
func (c *cleanupSlot) invoke() {
	if fn := c.take(); fn != nil {
		fn()
	}
}

// empty reports whether no callback is stored.
func (c *cleanupSlot) empty() bool {
	return c.fn == nil
}
