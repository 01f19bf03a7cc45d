package reactive

import (
	"errors"
	"fmt"
)

// ErrCycle is the sentinel for a computed that depends on itself,
// directly or through other computeds.
var ErrCycle = errors.New("reactive: dependency cycle")

// ErrDisposed is raised in strict mode when a disposed signal is written.
var ErrDisposed = errors.New("reactive: write to disposed signal")

// ErrUnknownField is returned by State.Set for a field that was never declared.
var ErrUnknownField = errors.New("reactive: unknown state field")

// ErrBudgetExceeded is reported when a flush reaches its effect budget.
var ErrBudgetExceeded = errors.New("reactive: effect budget exceeded")

// CycleError is the panic value raised when a computed is read while it
// is already evaluating.
type CycleError struct {
	// Label is the label of the computed that was re-entered, if set.
	Label string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	if e.Label == "" {
		return ErrCycle.Error()
	}
	return fmt.Sprintf("%s: computed %q read while evaluating", ErrCycle, e.Label)
}

// Unwrap returns ErrCycle for errors.Is support.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// DisposedError is the panic value raised by strict runtimes when a
// disposed signal is written.
type DisposedError struct {
	Label string
}

// Error implements the error interface.
func (e *DisposedError) Error() string {
	if e.Label == "" {
		return ErrDisposed.Error()
	}
	return fmt.Sprintf("%s %q", ErrDisposed, e.Label)
}

// Unwrap returns ErrDisposed for errors.Is support.
func (e *DisposedError) Unwrap() error {
	return ErrDisposed
}

// rejectWrite applies the disposed-write policy: panic in strict mode,
// otherwise drop the write and log it.
func (rt *Runtime) rejectWrite(label string) {
	if rt.strict {
		panic(&DisposedError{Label: label})
	}
	rt.logger.Debug("reactive: dropped write to disposed signal", "label", label)
}
