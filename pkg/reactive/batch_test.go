package reactive

import (
	"testing"
	"time"
)

func TestBatchCoalescesToFinalValue(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 0)

	var seen []int
	rt.Watch(func() {
		seen = append(seen, a.Get())
	})

	rt.Batch(func() {
		a.Set(1)
		a.Set(2)
		a.Set(3)
	})

	if len(seen) != 2 {
		t.Fatalf("expected 1 run after batch, got %d runs: %v", len(seen)-1, seen)
	}
	if seen[1] != 3 {
		t.Errorf("expected effect to observe 3, got %d", seen[1])
	}
}

func TestBatchMultipleSignalsSingleRun(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 0)
	b := NewSignal(rt, 0)
	c := NewSignal(rt, 0)

	runs := 0
	rt.Watch(func() {
		_ = a.Get() + b.Get() + c.Get()
		runs++
	})

	rt.Batch(func() {
		a.Set(1)
		b.Set(2)
		c.Set(3)
	})

	if runs != 2 {
		t.Errorf("expected 2 runs (create + batch), got %d", runs)
	}
}

func TestBatchNested(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 0)

	runs := 0
	rt.Watch(func() {
		_ = a.Get()
		runs++
	})

	rt.Batch(func() {
		a.Set(1)
		rt.Batch(func() {
			a.Set(2)
		})
		if runs != 1 {
			t.Errorf("inner batch flushed early: %d runs", runs)
		}
		a.Set(3)
	})

	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
	if rt.InBatch() {
		t.Error("batch depth should be back to 0")
	}
}

func TestBatchReturnsResult(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 1)

	got := Batch(rt, func() int {
		a.Set(7)
		return a.Peek() * 2
	})
	if got != 14 {
		t.Errorf("expected 14, got %d", got)
	}
}

func TestBatchFlushOrderIsFirstEnqueued(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 0)
	b := NewSignal(rt, 0)

	var order []string
	rt.Watch(func() {
		_ = a.Get()
		order = append(order, "A")
	})
	rt.Watch(func() {
		_ = b.Get()
		order = append(order, "B")
	})
	order = nil

	rt.Batch(func() {
		b.Set(1)
		a.Set(1)
		b.Set(2)
	})

	if len(order) != 2 || order[0] != "B" || order[1] != "A" {
		t.Errorf("expected [B A], got %v", order)
	}
}

func TestBatchPanicKeepsQueuePending(t *testing.T) {
	rt := NewRuntime()
	a := NewSignal(rt, 0)

	runs := 0
	rt.Watch(func() {
		_ = a.Get()
		runs++
	})

	func() {
		defer func() { _ = recover() }()
		rt.Batch(func() {
			a.Set(1)
			panic("abort")
		})
	}()

	if runs != 1 {
		t.Errorf("panicking batch flushed: %d runs", runs)
	}
	if rt.Stats().Pending != 1 {
		t.Errorf("expected 1 pending effect, got %d", rt.Stats().Pending)
	}

	rt.Flush()
	if runs != 2 {
		t.Errorf("expected Flush to run the pending effect, got %d runs", runs)
	}
}

func TestEffectPanicLeavesLaterEffectsPending(t *testing.T) {
	rt := NewRuntime()
	s := NewSignal(rt, 0)
	other := NewSignal(rt, 0)

	rt.Watch(func() {
		if s.Get() == 1 {
			panic("boom")
		}
	})
	seen := -1
	rt.Watch(func() {
		seen = s.Get()
	})

	func() {
		defer func() { _ = recover() }()
		s.Set(1)
	}()

	if seen != 0 {
		t.Errorf("effect behind the panic ran: saw %d", seen)
	}
	if rt.Stats().Pending != 1 {
		t.Fatalf("expected 1 pending effect, got %d", rt.Stats().Pending)
	}

	rt.Flush()
	if seen != 1 {
		t.Errorf("expected Flush to run the pending effect with 1, saw %d", seen)
	}
	if rt.Stats().Pending != 0 {
		t.Errorf("expected empty queue, got %d", rt.Stats().Pending)
	}

	other.Set(1)
	if seen != 1 {
		t.Errorf("unrelated write re-ran a flushed effect: saw %d", seen)
	}
}

func TestEffectBudgetDefersRunaway(t *testing.T) {
	rt := NewRuntime(WithEffectBudget(5))
	a := NewSignal(rt, 0)

	// Writes the signal it reads: re-enqueues itself forever.
	rt.Watch(func() {
		a.Set(a.Get() + 1)
	})

	stats := rt.Stats()
	if stats.BudgetTrips != 1 {
		t.Errorf("expected 1 budget trip, got %d", stats.BudgetTrips)
	}
	if stats.Pending != 1 {
		t.Errorf("expected the effect to stay queued, got %d pending", stats.Pending)
	}
	if a.Peek() != 6 {
		t.Errorf("expected 6 after create + 5 budgeted runs, got %d", a.Peek())
	}
}

type recordingObserver struct {
	NopObserver
	effects  int
	computed int
	flushes  int
	exceeded int
}

func (r *recordingObserver) EffectRan(string, time.Duration)         { r.effects++ }
func (r *recordingObserver) ComputedEvaluated(string, time.Duration) { r.computed++ }
func (r *recordingObserver) Flushed(int, time.Duration)              { r.flushes++ }
func (r *recordingObserver) BudgetExceeded(int)                      { r.exceeded++ }

func TestObserverNotified(t *testing.T) {
	obs := &recordingObserver{}
	rt := NewRuntime(WithObserver(obs))
	a := NewSignal(rt, 1)
	c := NewComputed(rt, func() int { return a.Get() })

	rt.Watch(func() { _ = c.Get() })
	a.Set(2)

	if obs.effects != 2 {
		t.Errorf("expected 2 effect runs, got %d", obs.effects)
	}
	if obs.computed != 2 {
		t.Errorf("expected 2 computed evaluations, got %d", obs.computed)
	}
	if obs.flushes != 1 {
		t.Errorf("expected 1 flush, got %d", obs.flushes)
	}
}
