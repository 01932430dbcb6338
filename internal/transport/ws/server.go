package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/omochice/roomchat/internal/chat"
)

const outgoingQueueSize = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server handles WebSocket connections and delegates to Hub.
type Server struct {
	address  string
	listener net.Listener
	hub      *chat.Hub
	server   *http.Server
	logger   zerolog.Logger
	ready    chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// New creates a WebSocket server that uses the provided Hub.
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

// Start starts accepting WebSocket connections on /ws and blocks until Stop
// is called or serving fails.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	default:
	}
	s.listener = listener
	s.server = server
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("WebSocket server started")

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Stop stops the WebSocket server and closes every client connection. It may
// be called before or concurrently with Start.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.quit)
		server := s.server
		s.mu.Unlock()

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
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

// URL returns the WebSocket endpoint.
func (s *Server) URL() string {
	return "ws://" + s.Addr() + "/ws"
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	conn := NewConnWithAddr(wsConn, r.RemoteAddr, s.hub.Codec().Binary())

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
	s.logger.Debug().Str("remote", r.RemoteAddr).Str("client", client.ID).Msg("client connected")

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
