// Package tcp serves the chat room over plain TCP. Text frames are newline
// delimited; binary frames carry a varint length prefix.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds a single inbound frame.
const MaxFrameSize = 64 * 1024

const writeWait = 10 * time.Second

// Conn adapts net.Conn to chat.Conn.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	binary bool
	mu     sync.Mutex
}

// NewConn wraps a net.Conn. With binary set, frames are length prefixed
// instead of newline terminated.
func NewConn(conn net.Conn, binary bool) *Conn {
	return &Conn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, MaxFrameSize),
		binary: binary,
	}
}

// Read implements chat.Conn. It returns one frame without its delimiter.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()
	}
	if c.binary {
		return c.readPrefixed()
	}
	return c.readLine()
}

func (c *Conn) readLine() ([]byte, error) {
	for {
		line, err := c.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)
		}
		if err != nil {
			return nil, err
		}
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		return bytes.Clone(line), nil
	}
}

func (c *Conn) readPrefixed() ([]byte, error) {
	n, err := binary.ReadUvarint(c.reader)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize {
		return nil, fmt.Errorf("frame exceeds %d bytes", MaxFrameSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	var frame []byte
	if c.binary {
		frame = protowire.AppendBytes(nil, data)
	} else {
		frame = append(bytes.Clone(data), '\n')
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_, err := c.conn.Write(frame)
	return err
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
