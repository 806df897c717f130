package mcp

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// sseConn is one live server-sent-events stream established by a GET upgrade.
// Writes are serialized by the connection's own mutex and never performed
// while the transport holds the connection-table lock.
type sseConn struct {
	id          string
	sessionID   SessionID
	w           http.ResponseWriter
	ctrl        *http.ResponseController
	established time.Time

	mu       sync.Mutex
	lastSent time.Time

	closed    chan struct{}
	closeOnce sync.Once
}

func newSSEConn(id string, sessionID SessionID, w http.ResponseWriter) *sseConn {
	now := time.Now()
	return &sseConn{
		id:          id,
		sessionID:   sessionID,
		w:           w,
		ctrl:        http.NewResponseController(w),
		established: now,
		lastSent:    now,
		closed:      make(chan struct{}),
	}
}

// write sends raw SSE bytes with a per-frame deadline. Successful writes,
// keepalives included, refresh lastSent.
func (c *sseConn) write(frame []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout > 0 {
		_ = c.ctrl.SetWriteDeadline(time.Now().Add(timeout))
	}
	if _, err := c.w.Write(frame); err != nil {
		return err
	}
	if err := c.ctrl.Flush(); err != nil {
		return err
	}
	_ = c.ctrl.SetWriteDeadline(time.Time{})
	c.lastSent = time.Now()
	return nil
}

func (c *sseConn) idle(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return now.Sub(c.lastSent)
}

func (c *sseConn) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (t *StreamableHTTP) addConn(conn *sseConn) bool {
	t.sseMu.Lock()
	defer t.sseMu.Unlock()

	if len(t.conns) >= t.maxSSEConnections {
		return false
	}
	t.conns[conn.id] = conn
	return true
}

// removeConn drops the connection from the table and releases its handler.
func (t *StreamableHTTP) removeConn(id string) {
	t.sseMu.Lock()
	conn, ok := t.conns[id]
	if ok {
		delete(t.conns, id)
	}
	t.sseMu.Unlock()

	if ok {
		conn.close()
	}
}

// dropSessionConns removes every connection bound to sessionID; used by
// DELETE, session expiry, and shutdown.
func (t *StreamableHTTP) dropSessionConns(sessionID SessionID) {
	t.sseMu.Lock()
	var dropped []*sseConn
	for id, conn := range t.conns {
		if conn.sessionID == sessionID {
			delete(t.conns, id)
			dropped = append(dropped, conn)
		}
	}
	t.sseMu.Unlock()

	for _, conn := range dropped {
		conn.close()
	}
}

func (t *StreamableHTTP) dropAllConns() {
	t.sseMu.Lock()
	dropped := make([]*sseConn, 0, len(t.conns))
	for _, conn := range t.conns {
		dropped = append(dropped, conn)
	}
	t.conns = make(map[string]*sseConn)
	t.sseMu.Unlock()

	for _, conn := range dropped {
		conn.close()
	}
}

func (t *StreamableHTTP) connCount() int {
	t.sseMu.Lock()
	defer t.sseMu.Unlock()

	return len(t.conns)
}

func (t *StreamableHTTP) snapshotConns() []*sseConn {
	t.sseMu.Lock()
	defer t.sseMu.Unlock()

	conns := make([]*sseConn, 0, len(t.conns))
	for _, conn := range t.conns {
		conns = append(conns, conn)
	}
	return conns
}

// broadcastFrame writes one SSE frame to every live connection, best-effort.
// A failing connection is removed rather than failing the broadcast.
func (t *StreamableHTTP) broadcastFrame(frame []byte) {
	for _, conn := range t.snapshotConns() {
		if err := conn.write(frame, t.sseWriteTimeout); err != nil {
			t.logger.Warn("failed to write SSE frame, removing connection",
				slog.String("connID", conn.id),
				slog.String("err", err.Error()))
			t.removeConn(conn.id)
		}
	}
}

// keepaliveLoop wakes every keepalive interval and sends a comment frame to
// each connection that has been quiet for at least one interval. Keepalives
// are suppressed once shutdown begins.
func (t *StreamableHTTP) keepaliveLoop() {
	defer close(t.keepaliveClosed)

	if t.keepaliveInterval <= 0 {
		<-t.done
		return
	}

	ticker := time.NewTicker(t.keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		if t.state.isShuttingDown() {
			continue
		}

		now := time.Now()
		for _, conn := range t.snapshotConns() {
			if conn.idle(now) < t.keepaliveInterval {
				continue
			}
			if err := conn.write([]byte(": keepalive\r\n\r\n"), t.sseWriteTimeout); err != nil {
				t.logger.Warn("keepalive write failed, removing connection",
					slog.String("connID", conn.id),
					slog.String("err", err.Error()))
				t.removeConn(conn.id)
			}
		}
	}
}

func (t *StreamableHTTP) subscribeEvents() {
	for _, eventType := range standardEventTypes {
		cb := t.forwardEvent(eventType)
		t.subscribed[eventType] = cb
		t.bus.Subscribe(eventType, cb)
	}
}

func (t *StreamableHTTP) unsubscribeEvents() {
	for eventType, cb := range t.subscribed {
		t.bus.Unsubscribe(eventType, cb)
		delete(t.subscribed, eventType)
	}
}

// forwardEvent adapts one bus event type into an SSE notification broadcast.
func (t *StreamableHTTP) forwardEvent(eventType string) EventCallback {
	return func(payload any) {
		frame, err := marshalNotification(eventType, payload)
		if err != nil {
			t.logger.Error("failed to marshal notification",
				slog.String("method", eventType),
				slog.String("err", err.Error()))
			return
		}
		t.broadcastFrame(sseDataFrame(frame))
	}
}

// sseDataFrame wraps a single-line JSON payload in the wire framing of the
// streamable transport.
func sseDataFrame(data []byte) []byte {
	frame := make([]byte, 0, len(data)+10)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\r\n\r\n"...)
	return frame
}
