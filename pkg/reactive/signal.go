package reactive

// Signal is a reactive value container.
// Reading a Signal's value while a Computed or Effect evaluates subscribes
// that computation to future changes of the value.
type Signal[T any] struct {
	rt *Runtime
	h  handle

	// value is the current signal value.
	value T

	// equal decides whether a write changes the value. Nil means identity.
	equal func(T, T) bool

	label    string
	disposed bool
}

// NewSignal creates a signal with the given initial value. If the runtime
// has a current owner, the signal is disposed with it.
func NewSignal[T any](rt *Runtime, initial T) *Signal[T] {
	s := &Signal[T]{
		rt:    rt,
		h:     rt.graph.alloc(kindSignal, ""),
		value: initial,
	}
	if o := rt.ctx.owner; o != nil {
		o.own(s)
	}
	return s
}

// Get returns the current value and subscribes the active computation.
func (s *Signal[T]) Get() T {
	if !s.disposed {
		s.rt.track(s.h)
	}
	return s.value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	return s.value
}

// Set stores value and notifies subscribers if it differs from the
// current value. Writing a disposed signal is a contract violation: it
// panics on strict runtimes and is dropped otherwise.
func (s *Signal[T]) Set(value T) {
	if s.disposed {
		s.rt.rejectWrite(s.label)
		return
	}
	if s.equals(s.value, value) {
		return
	}
	s.value = value
	s.rt.notify(s.h)
}

// Update replaces the value with fn applied to the current value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Version returns the number of changes the signal has seen.
func (s *Signal[T]) Version() uint64 {
	if n := s.rt.graph.get(s.h); n != nil {
		return n.version
	}
	return 0
}

// Disposed reports whether the signal has been disposed.
func (s *Signal[T]) Disposed() bool {
	return s.disposed
}

// Dispose clears the subscriber set; later writes are rejected.
func (s *Signal[T]) Dispose() {
	s.dispose()
}

func (s *Signal[T]) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.rt.graph.release(s.h)
}

// WithEquals sets the equality function used to detect changes.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// WithLabel names the signal in logs and telemetry.
func (s *Signal[T]) WithLabel(label string) *Signal[T] {
	s.label = label
	if n := s.rt.graph.get(s.h); n != nil {
		n.label = label
	}
	return s
}

// Label returns the signal's label.
func (s *Signal[T]) Label() string {
	return s.label
}

// observerCount returns the number of live subscribers.
func (s *Signal[T]) observerCount() int {
	if n := s.rt.graph.get(s.h); n != nil {
		return len(n.observers)
	}
	return 0
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return identical(a, b)
}

func (s *Signal[T]) isSignal() {}
