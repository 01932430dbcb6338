// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn adapts gorilla/websocket to chat.Conn interface.
type Conn struct {
	conn        *websocket.Conn
	remoteAddr  string
	messageType int
	wmu         sync.Mutex
}

// NewConn wraps a websocket.Conn. Frames are written as binary messages when
// binary is set, as text otherwise.
func NewConn(conn *websocket.Conn, binary bool) *Conn {
	return NewConnWithAddr(conn, conn.RemoteAddr().String(), binary)
}

// NewConnWithAddr wraps a websocket.Conn with the specified remote address.
func NewConnWithAddr(conn *websocket.Conn, addr string, binary bool) *Conn {
	mt := websocket.TextMessage
	if binary {
		mt = websocket.BinaryMessage
	}
	return &Conn{conn: conn, remoteAddr: addr, messageType: mt}
}

// Read implements chat.Conn.
// Reads the next text or binary message from the WebSocket connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(c.messageType, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.wmu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}
