package live

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/vango-dev/vbind/internal/config"
	"github.com/vango-dev/vbind/pkg/reconcile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func item(id, title string) map[string]any {
	return map[string]any{"id": id, "title": title}
}

func newTestHost(t *testing.T, items ...any) *Host {
	t.Helper()
	cfg := config.Default()
	cfg.TextField = "title"
	h := NewHost(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithItems(items),
	)
	t.Cleanup(h.Close)
	return h
}

// texts reads the rendered texts on the event loop.
func texts(t *testing.T, h *Host) []string {
	t.Helper()
	var out []string
	if err := h.Do(context.Background(), func() error {
		out = h.list.Texts()
		return nil
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	return out
}

func TestHostInitialItems(t *testing.T) {
	h := newTestHost(t, item("a", "A"), item("b", "B"))

	if diff := cmp.Diff([]string{"A", "B"}, texts(t, h)); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}

	items, err := h.Items(context.Background())
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items, got %d", len(items))
	}
}

func TestHostRejectsUnkeyableInitialItems(t *testing.T) {
	h := newTestHost(t, item("a", "A"), 42)

	if got := texts(t, h); len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestHostReplaceReportsStats(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	stats, err := h.Replace(ctx, []any{item("a", "A"), item("b", "B")})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if stats.Created != 2 {
		t.Errorf("expected 2 created, got %+v", stats)
	}

	stats, err = h.Replace(ctx, []any{item("b", "B"), item("a", "A2")})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	want := reconcile.Stats{Reused: 2, Moved: 1, Updated: 2}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B", "A2"}, texts(t, h)); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
}

func TestHostAppendReverseRemove(t *testing.T) {
	h := newTestHost(t, item("a", "A"))
	ctx := context.Background()

	if _, err := h.Append(ctx, item("b", "B")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := h.Reverse(ctx); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if diff := cmp.Diff([]string{"B", "A"}, texts(t, h)); diff != "" {
		t.Errorf("after reverse (-want +got):\n%s", diff)
	}

	stats, err := h.Remove(ctx, "b")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if stats.Removed != 1 {
		t.Errorf("expected 1 removed, got %+v", stats)
	}
	if _, err := h.Remove(ctx, "zzz"); !stderrors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, texts(t, h)); diff != "" {
		t.Errorf("after remove (-want +got):\n%s", diff)
	}
}

func TestHostKeyErrorLeavesListUntouched(t *testing.T) {
	h := newTestHost(t, item("a", "A"))

	if _, err := h.Append(context.Background(), 7); err == nil {
		t.Fatal("expected a key error")
	}
	if diff := cmp.Diff([]string{"A"}, texts(t, h)); diff != "" {
		t.Errorf("list changed (-want +got):\n%s", diff)
	}
}

func TestHostPositionalKeys(t *testing.T) {
	cfg := config.Default()
	cfg.KeyField = "-"
	h := NewHost(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer h.Close()

	stats, err := h.Replace(context.Background(), []any{"x", "y"})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if stats.Created != 2 {
		t.Errorf("expected 2 created, got %+v", stats)
	}
	if diff := cmp.Diff([]string{"x", "y"}, texts(t, h)); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
}

func TestHostDoReturnsError(t *testing.T) {
	h := newTestHost(t)
	boom := stderrors.New("boom")

	if err := h.Do(context.Background(), func() error { return boom }); !stderrors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestHostDispatchPanicRecovered(t *testing.T) {
	h := newTestHost(t)

	if err := h.Dispatch(func() { panic("bad") }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := h.Do(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("loop stopped after panic: %v", err)
	}
}

func TestHostClosed(t *testing.T) {
	h := newTestHost(t)
	h.Close()
	h.Close()

	if err := h.Dispatch(func() {}); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Dispatch after Close: %v", err)
	}
	if _, err := h.Items(context.Background()); !stderrors.Is(err, ErrClosed) {
		t.Errorf("Items after Close: %v", err)
	}
	if !h.rec.Disposed() {
		t.Error("reconciler should be disposed")
	}
}

func TestHostDoHonorsContext(t *testing.T) {
	h := newTestHost(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)
	if err := h.Dispatch(func() { <-block }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := h.Do(ctx, func() error { return nil }); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
