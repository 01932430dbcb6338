// Package ws provides the client side WebSocket connection to the chat server.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ErrClosed is returned when using a connection after Close.
var ErrClosed = errors.New("connection closed")

// Options configures a connection.
type Options struct {
	// Binary sends binary frames instead of text frames.
	Binary bool
	// DialTimeout bounds the handshake. Zero means no timeout.
	DialTimeout time.Duration
	// WriteTimeout bounds each frame write. Zero means no timeout.
	WriteTimeout time.Duration
}

// Conn is a client WebSocket connection using gobwas/ws.
type Conn struct {
	conn   net.Conn
	reader *wsutil.Reader
	onCtrl wsutil.FrameHandlerFunc
	op     ws.OpCode
	opts   Options

	wmu       sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Dial connects to the WebSocket endpoint at address.
func Dial(ctx context.Context, address string, opts Options) (*Conn, error) {
	dialer := ws.Dialer{Timeout: opts.DialTimeout}
	conn, br, _, err := dialer.Dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	var source io.Reader = conn
	if br != nil {
		source = br
	}

	c := &Conn{
		conn: conn,
		op:   ws.OpText,
		opts: opts,
	}
	if opts.Binary {
		c.op = ws.OpBinary
	}

	ctrl := wsutil.ControlFrameHandler(conn, ws.StateClientSide)
	c.onCtrl = func(hdr ws.Header, r io.Reader) error {
		c.wmu.Lock()
		defer c.wmu.Unlock()
		return ctrl(hdr, r)
	}
	c.reader = &wsutil.Reader{
		Source:         source,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.onCtrl,
	}
	return c, nil
}

// Send writes one frame to the server.
func (c *Conn) Send(frame []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.opts.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if err := wsutil.WriteClientMessage(c.conn, c.op, frame); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Read returns the next text or binary frame. Control frames are answered
// internally. The context deadline, if any, bounds the read; to interrupt a
// blocked Read, Close the connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}

	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.onCtrl(hdr, c.reader); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(c.reader)
	}
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		c.closed = true
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, body)
		c.wmu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr returns the server address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
