package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/omochice/roomchat/internal/chat"
)

const outgoingQueueSize = 64

// Server handles TCP connections and delegates to Hub.
type Server struct {
	address  string
	listener net.Listener
	hub      *chat.Hub
	logger   zerolog.Logger
	ready    chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, logger zerolog.Logger) *Server {
	return &Server{
		address: address,
		hub:     hub,
		logger:  logger,
		ready:   make(chan struct{}),
		quit:    make(chan struct{}),
		conns:   make(map[*Conn]struct{}),
	}
}

// Start accepts connections until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("TCP server started")

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn().Err(err).Msg("failed to accept TCP connection")
			continue
		}
		s.serve(conn)
	}
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop closes the listener and every client connection, then waits for the
// client goroutines. It may be called before or concurrently with Start.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		listener := s.listener
		s.mu.Unlock()
		if listener != nil {
			_ = listener.Close()
		}

		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) serve(netConn net.Conn) {
	conn := NewConn(netConn, s.hub.Codec().Binary())

	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	client := chat.NewClient(conn, outgoingQueueSize)
	s.hub.Register(client)
	s.logger.Debug().Str("remote", conn.RemoteAddr()).Str("client", client.ID).Msg("client connected")

	go s.handleClient(client, conn)
}

func (s *Server) handleClient(client *chat.Client, conn *Conn) {
	defer s.wg.Done()
	s.hub.Serve(context.Background(), client)

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}
