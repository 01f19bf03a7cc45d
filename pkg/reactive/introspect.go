package reactive

// Readable is a reactive value that can be read with or without tracking.
type Readable[T any] interface {
	Get() T
	Peek() T
}

// Writable is a Readable that also accepts writes. Two-way bindings use
// it to decide whether a bound value can be written back.
type Writable[T any] interface {
	Readable[T]
	Set(T)
}

type signalMarker interface{ isSignal() }

type computedMarker interface{ isComputed() }

// IsSignal reports whether v is a *Signal of any type.
func IsSignal(v any) bool {
	_, ok := v.(signalMarker)
	return ok
}

// IsComputed reports whether v is a *Computed of any type.
func IsComputed(v any) bool {
	_, ok := v.(computedMarker)
	return ok
}

// IsReactive reports whether v is a signal or a computed.
func IsReactive(v any) bool {
	return IsSignal(v) || IsComputed(v)
}

// Compile-time interface checks.
var (
	_ Writable[int] = (*Signal[int])(nil)
	_ Readable[int] = (*Computed[int])(nil)
	_ disposable    = (*Signal[int])(nil)
	_ disposable    = (*Computed[int])(nil)
	_ disposable    = (*Effect)(nil)
	_ runner        = (*Effect)(nil)
)
