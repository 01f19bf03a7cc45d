package reactive

import (
	"errors"
	"testing"
)

func TestComputedLazy(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 2)

	calls := 0
	doubled := NewComputed(rt, func() int {
		calls++
		return a.Get() * 2
	})

	if calls != 0 {
		t.Fatalf("computed ran before first read: %d calls", calls)
	}
	if !doubled.Dirty() {
		t.Error("new computed should start dirty")
	}
	if doubled.Get() != 4 {
		t.Errorf("expected 4, got %d", doubled.Get())
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestComputedMemoizes(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 3)

	calls := 0
	doubled := NewComputed(rt, func() int {
		calls++
		return a.Get() * 2
	})

	_ = doubled.Get()
	_ = doubled.Get()
	_ = doubled.Get()
	if calls != 1 {
		t.Errorf("expected 1 evaluation for 3 reads, got %d", calls)
	}

	a.Set(4)
	a.Set(5)
	if calls != 1 {
		t.Errorf("computed without readers ran eagerly: %d calls", calls)
	}
	if doubled.Get() != 10 {
		t.Errorf("expected 10, got %d", doubled.Get())
	}
	_ = doubled.Get()
	if calls != 2 {
		t.Errorf("expected 2 evaluations, got %d", calls)
	}
}

func TestComputedDynamicDependencies(t *testing.T) {
	rt := NewRuntime()
	useA := NewSignal(rt, true)
	a := NewSignal(rt, "a")
	b := NewSignal(rt, "b")

	calls := 0
	pick := NewComputed(rt, func() string {
		calls++
		if useA.Get() {
			return a.Get()
		}
		return b.Get()
	})

	if pick.Get() != "a" {
		t.Fatalf("expected a, got %s", pick.Get())
	}

	// b is not a dependency yet.
	b.Set("b2")
	if pick.Dirty() {
		t.Error("write to unread signal dirtied the computed")
	}

	useA.Set(false)
	if pick.Get() != "b2" {
		t.Fatalf("expected b2, got %s", pick.Get())
	}

	// a was dropped from the dependency set.
	a.Set("a2")
	if pick.Dirty() {
		t.Error("stale edge from a survived re-evaluation")
	}
	if a.observerCount() != 0 {
		t.Errorf("expected a to have 0 observers, got %d", a.observerCount())
	}
}

func TestComputedChain(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 1)
	b := NewComputed(rt, func() int { return a.Get() + 1 })
	c := NewComputed(rt, func() int { return b.Get() * 10 })

	if c.Get() != 20 {
		t.Fatalf("expected 20, got %d", c.Get())
	}
	a.Set(2)
	if !c.Dirty() {
		t.Error("downstream computed should be dirty after upstream write")
	}
	if c.Get() != 30 {
		t.Errorf("expected 30, got %d", c.Get())
	}
}

func TestComputedCycleDetected(t *testing.T) {
	rt := NewRuntime()

	var self *Computed[int]
	self = NewComputed(rt, func() int {
		return self.Get() + 1
	}).WithLabel("self")

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected error panic, got %v", r)
		}
		if !errors.Is(err, ErrCycle) {
			t.Errorf("expected ErrCycle, got %v", err)
		}
		var ce *CycleError
		if !errors.As(err, &ce) || ce.Label != "self" {
			t.Errorf("expected CycleError for self, got %v", err)
		}
		if rt.Tracking() {
			t.Error("tracking context leaked after panic")
		}
	}()
	_ = self.Get()
}

func TestComputedMutualCycleDetected(t *testing.T) {
	rt := NewRuntime()

	var a, b *Computed[int]
	a = NewComputed(rt, func() int { return b.Get() })
	b = NewComputed(rt, func() int { return a.Get() })

	defer func() {
		r := recover()
		err, _ := r.(error)
		if !errors.Is(err, ErrCycle) {
			t.Errorf("expected ErrCycle, got %v", r)
		}
	}()
	_ = a.Get()
}

func TestComputedPanicRestoresContext(t *testing.T) {
	rt := NewRuntime()
	fail := NewSignal(rt, true)
	other := NewSignal(rt, 0)

	c := NewComputed(rt, func() int {
		if fail.Get() {
			panic("boom")
		}
		return 1
	})

	func() {
		defer func() { _ = recover() }()
		_ = c.Get()
	}()

	if rt.Tracking() {
		t.Fatal("listener still installed after panic")
	}

	// A later unrelated read must not be attributed to the computed.
	_ = other.Get()
	if other.observerCount() != 0 {
		t.Errorf("read after panic was mis-attributed: %d observers", other.observerCount())
	}

	if !c.Dirty() {
		t.Error("computed should stay dirty after a panicking evaluation")
	}
	fail.Set(false)
	if c.Get() != 1 {
		t.Errorf("expected 1 after recovery, got %d", c.Get())
	}
}

func TestComputedDisposeKeepsLastValue(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 1)
	c := NewComputed(rt, func() int { return a.Get() })

	_ = c.Get()
	c.Dispose()
	a.Set(5)

	if c.Get() != 1 {
		t.Errorf("expected cached 1 after dispose, got %d", c.Get())
	}
	if a.observerCount() != 0 {
		t.Errorf("expected no observers after dispose, got %d", a.observerCount())
	}
}
