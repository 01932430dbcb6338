// Package client connects a chat session to the server.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/omochice/roomchat/internal/client/ws"
	"github.com/omochice/roomchat/internal/session"
	"github.com/omochice/roomchat/pkg/protocol"
)

// ErrNotConnected is returned when sending before Connect.
var ErrNotConnected = errors.New("not connected to server")

// Config configures a Client.
type Config struct {
	Address      string
	Username     string
	Codec        protocol.Codec
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       zerolog.Logger

	// OnChange and OnError are registered on the session before it
	// registers, so no update is missed.
	OnChange func(session.State)
	OnError  func(error)
}

// Client owns the connection and the session riding on it.
type Client struct {
	cfg Config

	mu         sync.RWMutex
	conn       *ws.Conn
	session    *session.Synchronizer
	err        error
	isShutdown bool

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Client. Call Connect to dial the server.
func New(cfg Config) *Client {
	if cfg.Codec == nil {
		cfg.Codec = protocol.JSON
	}
	return &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}
}

// Connect dials the server, registers the user and starts applying inbound
// frames.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := ws.Dial(ctx, c.cfg.Address, ws.Options{
		Binary:       c.cfg.Codec.Binary(),
		DialTimeout:  c.cfg.DialTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	})
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithLogger(c.cfg.Logger),
		session.WithCodec(c.cfg.Codec),
	}
	if c.cfg.OnChange != nil {
		opts = append(opts, session.WithChangeListener(c.cfg.OnChange))
	}
	if c.cfg.OnError != nil {
		opts = append(opts, session.WithErrorHandler(c.cfg.OnError))
	}

	sess, err := session.New(conn, c.cfg.Username, opts...)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start session: %w", err)
	}

	c.mu.Lock()
	if c.isShutdown {
		c.mu.Unlock()
		sess.Close()
		_ = conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.session = sess
	c.mu.Unlock()

	c.cfg.Logger.Info().Str("server", c.cfg.Address).Str("user", c.cfg.Username).Msg("connected")

	go c.receiveMessages(conn, sess)

	return nil
}

// Session returns the session, or nil before Connect.
func (c *Client) Session() *session.Synchronizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SubmitMessage sends body to the room.
func (c *Client) SubmitMessage(body string) error {
	sess := c.Session()
	if sess == nil {
		return ErrNotConnected
	}
	return sess.SubmitMessage(body)
}

// IsConnected reports whether the connection is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.isShutdown && !c.closedLocked()
}

func (c *Client) closedLocked() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done is closed once the connection is gone, either through Disconnect or
// because the server went away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil after a clean Disconnect.
func (c *Client) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Disconnect closes the session and the connection. It does not wait for the
// receive goroutine, so it may be called from OnChange or OnError; Done is
// closed once that goroutine has exited.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.isShutdown {
		c.mu.Unlock()
		return
	}
	c.isShutdown = true
	conn, sess := c.conn, c.session
	c.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	if conn == nil {
		c.doneOnce.Do(func() { close(c.done) })
		return
	}
	_ = conn.Close()
}

func (c *Client) receiveMessages(conn *ws.Conn, sess *session.Synchronizer) {
	defer c.doneOnce.Do(func() { close(c.done) })
	defer sess.Close()

	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			shutdown := c.isShutdown
			if !shutdown {
				c.err = err
			}
			c.mu.Unlock()

			var closed wsutil.ClosedError
			switch {
			case shutdown:
			case errors.As(err, &closed):
				c.cfg.Logger.Info().Int("code", int(closed.Code)).Str("reason", closed.Reason).Msg("server closed connection")
			default:
				c.cfg.Logger.Error().Err(err).Msg("error reading from server")
			}
			_ = conn.Close()
			return
		}

		sess.HandleInbound(data)
	}
}
