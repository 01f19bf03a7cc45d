package reactive

import "testing"

func TestOwnerDisposesEffects(t *testing.T) {
	rt := NewRuntime()
	owner := rt.NewOwner(nil)
	count := NewSignal(rt, 0)

	runs := 0
	cleanups := 0
	owner.Run(func() {
		rt.Effect(func() Cleanup {
			_ = count.Get()
			runs++
			return func() { cleanups++ }
		})
	})

	owner.Dispose()
	count.Set(1)

	if runs != 1 {
		t.Errorf("effect ran after owner dispose: %d runs", runs)
	}
	if cleanups != 1 {
		t.Errorf("expected 1 cleanup, got %d", cleanups)
	}
	if !owner.IsDisposed() {
		t.Error("owner should report disposed")
	}
}

func TestOwnerDisposesSignals(t *testing.T) {
	rt := NewRuntime()
	owner := rt.NewOwner(nil)

	var s *Signal[int]
	owner.Run(func() {
		s = NewSignal(rt, 1)
	})

	owner.Dispose()
	if !s.Disposed() {
		t.Error("signal created under owner should be disposed with it")
	}
	s.Set(2)
	if s.Peek() != 1 {
		t.Errorf("write after owner dispose was accepted: %d", s.Peek())
	}
}

func TestOwnerCleanupOrder(t *testing.T) {
	rt := NewRuntime()
	parent := rt.NewOwner(nil)
	first := rt.NewOwner(parent)
	second := rt.NewOwner(parent)

	var order []string
	parent.OnCleanup(func() { order = append(order, "parent-1") })
	parent.OnCleanup(func() { order = append(order, "parent-2") })
	first.OnCleanup(func() { order = append(order, "first") })
	second.OnCleanup(func() { order = append(order, "second") })

	parent.Dispose()

	want := []string{"second", "first", "parent-2", "parent-1"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestOwnerDisposeIdempotent(t *testing.T) {
	rt := NewRuntime()
	owner := rt.NewOwner(nil)

	calls := 0
	owner.OnCleanup(func() { calls++ })
	owner.Dispose()
	owner.Dispose()

	if calls != 1 {
		t.Errorf("expected cleanup once, got %d", calls)
	}
}

func TestOwnerChildDetachesFromParent(t *testing.T) {
	rt := NewRuntime()
	parent := rt.NewOwner(nil)
	child := rt.NewOwner(parent)

	calls := 0
	child.OnCleanup(func() { calls++ })
	child.Dispose()
	parent.Dispose()

	if calls != 1 {
		t.Errorf("child cleanup ran %d times", calls)
	}
	if parent.Len() != 0 {
		t.Errorf("expected parent to be empty, got %d entries", parent.Len())
	}
}

func TestOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	rt := NewRuntime()
	owner := rt.NewOwner(nil)
	owner.Dispose()

	ran := false
	owner.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("cleanup on disposed owner should run immediately")
	}
}

func TestOnCleanupUsesCurrentOwner(t *testing.T) {
	rt := NewRuntime()

	if OnCleanup(rt, func() {}) {
		t.Error("OnCleanup without an owner should report false")
	}

	ran := false
	root := rt.Root(func(o *Owner) {
		if !OnCleanup(rt, func() { ran = true }) {
			t.Error("OnCleanup inside Root should find the owner")
		}
	})
	root.Dispose()
	if !ran {
		t.Error("cleanup registered in Root did not run")
	}
}

func TestRootIsUntracked(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, 0)

	runs := 0
	rt.Watch(func() {
		runs++
		rt.Root(func(*Owner) {
			_ = s.Get()
		})
	})

	s.Set(1)
	if runs != 1 {
		t.Errorf("read inside Root subscribed the outer effect: %d runs", runs)
	}
}

func TestOwnerContextValues(t *testing.T) {
	rt := NewRuntime()
	parent := rt.NewOwner(nil)
	child := rt.NewOwner(parent)

	parent.Provide("theme", "dark")
	v, ok := child.Lookup("theme")
	if !ok || v != "dark" {
		t.Errorf("expected inherited dark, got %v (%v)", v, ok)
	}
	if _, ok := child.Lookup("missing"); ok {
		t.Error("missing key should not be found")
	}
}
