package live

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vbind/pkg/protocol"
	"github.com/vango-dev/vbind/pkg/vdom"
)

const (
	writeTimeout = 10 * time.Second
	readLimit    = 64 << 10
)

// client is one WebSocket connection. Frames are queued on send and
// written by writeLoop.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func patchFrame(patches []vdom.Patch) []byte {
	return protocol.EncodeFrame(protocol.FramePatches, protocol.EncodePatches(patches))
}

func snapshotFrame(patches []vdom.Patch) []byte {
	return protocol.EncodeFrame(protocol.FrameSnapshot, protocol.EncodePatches(patches))
}

func errorFrame(code, message string, fatal bool) []byte {
	return protocol.EncodeFrame(protocol.FrameError, protocol.EncodeErrorMessage(&protocol.ErrorMessage{
		Code:    code,
		Message: message,
		Fatal:   fatal,
	}))
}

// sendTo queues a frame without blocking. A client that cannot keep up
// is dropped. Only the event loop calls it.
func (h *Host) sendTo(c *client, frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		h.logger.Warn("client too slow, disconnecting")
		h.telemetry.WebSocketError("slow_client")
		h.unregister(c)
	}
}

// register adds c and sends it the current list. Only the event loop
// calls it.
func (h *Host) register(c *client) {
	h.clients[c] = struct{}{}
	h.telemetry.ClientConnected()
	h.sendTo(c, snapshotFrame(h.list.Snapshot()))
}

// sweep unregisters clients that were closed off the loop, when a
// drop or queued send could not be dispatched. Only the event loop
// calls it.
func (h *Host) sweep() {
	for c := range h.clients {
		if c.closed() {
			h.unregister(c)
		}
	}
}

// unregister removes and closes c. Only the event loop calls it.
func (h *Host) unregister(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.telemetry.ClientDisconnected()
	c.close()
}

// handleWebSocket upgrades the request and serves the connection until
// either side closes it.
func (h *Host) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.telemetry.WebSocketError("upgrade")
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(readLimit)

	c := &client{
		conn: conn,
		send: make(chan []byte, h.sendBuffer),
		done: make(chan struct{}),
	}
	if !h.track(c) {
		refuse(conn, "host closed")
		return
	}
	defer h.untrack(c)

	if err := h.Dispatch(func() { h.register(c) }); err != nil {
		refuse(conn, err.Error())
		c.close()
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writeLoop(c)
	}()
	h.readLoop(c)
}

// refuse closes conn with a try-again status.
func refuse(conn *websocket.Conn, reason string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, reason),
		time.Now().Add(writeTimeout))
	conn.Close()
}

// track records c so Close can reach it. It fails once the host is
// closed.
func (h *Host) track(c *client) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Host) untrack(c *client) {
	h.connMu.Lock()
	delete(h.conns, c)
	h.connMu.Unlock()
	h.wg.Done()
}

// writeLoop writes queued frames until the client is closed.
func (h *Host) writeLoop(c *client) {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				h.telemetry.WebSocketError("write")
				h.logger.Debug("write error", "error", err)
				h.drop(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop handles client frames until the connection fails.
func (h *Host) readLoop(c *client) {
	defer h.drop(c)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				h.telemetry.WebSocketError("read")
				h.logger.Error("read error", "error", err)
			}
			return
		}

		ft, payload, err := protocol.DecodeFrame(msg)
		if err != nil {
			h.reject(c, "VB301", "invalid frame")
			continue
		}

		switch ft {
		case protocol.FrameControl:
			h.handleControl(c, payload)
		default:
			h.reject(c, "VB301", "unexpected "+ft.String()+" frame")
		}
	}
}

// handleControl answers pings and resync requests.
func (h *Host) handleControl(c *client, payload []byte) {
	ct, err := protocol.DecodeControl(payload)
	if err != nil {
		h.reject(c, "VB301", err.Error())
		return
	}

	switch ct {
	case protocol.ControlPing:
		pong := protocol.EncodeFrame(protocol.FrameControl, protocol.EncodeControl(protocol.ControlPong))
		h.queue(c, func() { h.sendTo(c, pong) })

	case protocol.ControlPong:
		h.logger.Debug("received pong")

	case protocol.ControlResync:
		h.logger.Debug("resync requested")
		h.queue(c, func() {
			if _, ok := h.clients[c]; ok {
				h.sendTo(c, snapshotFrame(h.list.Snapshot()))
			}
		})
	}
}

// reject sends a non-fatal error frame.
func (h *Host) reject(c *client, code, message string) {
	h.telemetry.WebSocketError("protocol")
	frame := errorFrame(code, message, false)
	h.queue(c, func() { h.sendTo(c, frame) })
}

// queue dispatches fn for c, closing c when the host cannot accept it.
func (h *Host) queue(c *client, fn func()) {
	if err := h.Dispatch(fn); err != nil {
		c.close()
	}
}

// drop unregisters c from the event loop. When the loop cannot take the
// job c is only closed, and the next sweep unregisters it.
func (h *Host) drop(c *client) {
	if err := h.Dispatch(func() { h.unregister(c) }); err != nil {
		c.close()
	}
}
