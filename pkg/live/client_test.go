package live

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/vbind/internal/config"
	"github.com/vango-dev/vbind/pkg/protocol"
	"github.com/vango-dev/vbind/pkg/vdom"
)

func dial(t *testing.T, h *Host) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (protocol.FrameType, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ft, payload, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return ft, payload
}

func readPatches(t *testing.T, conn *websocket.Conn, want protocol.FrameType) []vdom.Patch {
	t.Helper()
	ft, payload := readFrame(t, conn)
	if ft != want {
		t.Fatalf("expected %v frame, got %v", want, ft)
	}
	patches, err := protocol.DecodePatches(payload)
	if err != nil {
		t.Fatalf("decode patches: %v", err)
	}
	return patches
}

func TestWebSocketSnapshotThenPatches(t *testing.T) {
	h := newTestHost(t, item("a", "A"), item("b", "B"))
	conn := dial(t, h)

	snapshot := readPatches(t, conn, protocol.FrameSnapshot)
	want := []vdom.Patch{
		{Op: vdom.PatchInsertNode, ID: 1, After: 0, Tag: "li", Value: "A"},
		{Op: vdom.PatchSetAttr, ID: 1, Key: "data-key", Value: "a"},
		{Op: vdom.PatchInsertNode, ID: 2, After: 1, Tag: "li", Value: "B"},
		{Op: vdom.PatchSetAttr, ID: 2, Key: "data-key", Value: "b"},
	}
	if diff := cmp.Diff(want, snapshot); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if _, err := h.Append(context.Background(), item("c", "C")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	patches := readPatches(t, conn, protocol.FramePatches)
	want = []vdom.Patch{
		{Op: vdom.PatchInsertNode, ID: 3, After: 2, Tag: "li", Value: "C"},
		{Op: vdom.PatchSetAttr, ID: 3, Key: "data-key", Value: "c"},
	}
	if diff := cmp.Diff(want, patches); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}

	if _, err := h.Reverse(context.Background()); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	patches = readPatches(t, conn, protocol.FramePatches)
	for _, p := range patches {
		if p.Op != vdom.PatchMoveNode {
			t.Errorf("reverse should only move nodes, got %v", p.Op)
		}
	}
}

func TestWebSocketPingAndResync(t *testing.T) {
	h := newTestHost(t, item("a", "A"))
	conn := dial(t, h)
	readPatches(t, conn, protocol.FrameSnapshot)

	ping := protocol.EncodeFrame(protocol.FrameControl, protocol.EncodeControl(protocol.ControlPing))
	if err := conn.WriteMessage(websocket.BinaryMessage, ping); err != nil {
		t.Fatalf("write: %v", err)
	}
	ft, payload := readFrame(t, conn)
	if ft != protocol.FrameControl {
		t.Fatalf("expected control frame, got %v", ft)
	}
	if ct, err := protocol.DecodeControl(payload); err != nil || ct != protocol.ControlPong {
		t.Errorf("expected pong, got %v (%v)", ct, err)
	}

	resync := protocol.EncodeFrame(protocol.FrameControl, protocol.EncodeControl(protocol.ControlResync))
	if err := conn.WriteMessage(websocket.BinaryMessage, resync); err != nil {
		t.Fatalf("write: %v", err)
	}
	snapshot := readPatches(t, conn, protocol.FrameSnapshot)
	if len(snapshot) != 2 || snapshot[0].Value != "A" {
		t.Errorf("unexpected resync snapshot %+v", snapshot)
	}
}

func TestWebSocketRejectsUnexpectedFrames(t *testing.T) {
	h := newTestHost(t)
	conn := dial(t, h)
	readPatches(t, conn, protocol.FrameSnapshot)

	for _, msg := range [][]byte{{0x7f}, protocol.EncodeFrame(protocol.FramePatches, nil)} {
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			t.Fatalf("write: %v", err)
		}
		ft, payload := readFrame(t, conn)
		if ft != protocol.FrameError {
			t.Fatalf("expected error frame, got %v", ft)
		}
		em, err := protocol.DecodeErrorMessage(payload)
		if err != nil {
			t.Fatalf("decode error message: %v", err)
		}
		if em.Code != "VB301" || em.Fatal {
			t.Errorf("unexpected error message %+v", em)
		}
	}
}

func TestWebSocketClosedByHost(t *testing.T) {
	h := newTestHost(t)
	conn := dial(t, h)
	readPatches(t, conn, protocol.FrameSnapshot)

	h.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to close")
	}
}

// activeClients reads the connected-clients gauge from h's registry.
func activeClients(t *testing.T, h *Host) float64 {
	t.Helper()
	families, err := h.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if strings.HasSuffix(mf.GetName(), "active_clients") {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("active_clients gauge not registered")
	return 0
}

func TestDisconnectWithFullQueueIsSwept(t *testing.T) {
	cfg := config.Default()
	cfg.TextField = "title"
	h := NewHost(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithItems([]any{item("a", "A")}),
		WithQueueSize(1),
	)
	conn := dial(t, h)
	readPatches(t, conn, protocol.FrameSnapshot)

	// Hold the loop and fill the queue so the disconnect cannot be
	// dispatched.
	started := make(chan struct{})
	release := make(chan struct{})
	if err := h.Dispatch(func() { close(started); <-release }); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	<-started
	if err := h.Dispatch(func() {}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := h.Dispatch(func() {}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.connMu.Lock()
		n := len(h.conns)
		h.connMu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			close(release)
			t.Fatal("server side of the connection never closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)

	var registered int
	if err := h.Do(context.Background(), func() error {
		registered = len(h.clients)
		return nil
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if registered != 0 {
		t.Errorf("closed client still registered: %d clients", registered)
	}
	if got := activeClients(t, h); got != 0 {
		t.Errorf("active_clients=%v, want 0", got)
	}
}
