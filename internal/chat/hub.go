package chat

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/omochice/roomchat/pkg/protocol"
)

// Client represents a connected peer.
type Client struct {
	ID       string
	Conn     Conn
	Username string
	Outgoing chan []byte

	joined uint64
}

// NewClient creates a client with a buffered outgoing queue.
func NewClient(conn Conn, queueSize int) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Outgoing: make(chan []byte, queueSize),
	}
}

// Hub manages all connected clients and handles broadcast.
type Hub struct {
	codec  protocol.Codec
	logger zerolog.Logger

	clients map[*Client]bool
	seq     uint64
	mu      sync.RWMutex

	// bmu serializes broadcasts so every peer sees frames in the same order.
	bmu sync.Mutex
}

// NewHub creates a Hub speaking codec.
func NewHub(codec protocol.Codec, logger zerolog.Logger) *Hub {
	if codec == nil {
		codec = protocol.JSON
	}
	return &Hub{
		codec:   codec,
		logger:  logger,
		clients: make(map[*Client]bool),
	}
}

// Codec returns the codec the hub speaks.
func (h *Hub) Codec() protocol.Codec {
	return h.codec
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub. Once it returns, nothing is
// queued on the client's Outgoing channel anymore.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	registered := client.Username != ""
	h.mu.Unlock()

	if ok && registered {
		h.logger.Info().Str("user", client.Username).Msg("user left")
		h.broadcastRoster()
	}
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Roster returns the registered names in join order.
func (h *Hub) Roster() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rosterLocked()
}

func (h *Hub) rosterLocked() []string {
	registered := lo.Filter(lo.Keys(h.clients), func(c *Client, _ int) bool {
		return c.Username != ""
	})
	slices.SortFunc(registered, func(a, b *Client) int {
		return cmp.Compare(a.joined, b.joined)
	})
	return lo.Uniq(lo.Map(registered, func(c *Client, _ int) string {
		return c.Username
	}))
}

// HandleClient reads frames from client until its connection fails, then
// unregisters it.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	defer h.Unregister(client)

	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			h.logger.Debug().Err(err).Str("remote", client.Conn.RemoteAddr()).Msg("read ended")
			return
		}

		f, err := h.codec.Unmarshal(data)
		if err != nil {
			h.logger.Warn().Err(err).Str("remote", client.Conn.RemoteAddr()).Msg("failed to decode frame")
			continue
		}

		switch f.Kind {
		case protocol.KindRegister:
			h.register(client, f.DataString())
		case protocol.KindMessage:
			h.relay(client, f.DataString())
		default:
			h.logger.Debug().Str("kind", f.Kind.String()).Msg("ignored frame")
		}
	}
}

func (h *Hub) register(client *Client, name string) {
	if name == "" {
		h.logger.Warn().Str("remote", client.Conn.RemoteAddr()).Msg("register without name")
		return
	}

	h.mu.Lock()
	if client.Username != "" {
		h.mu.Unlock()
		h.logger.Warn().Str("user", client.Username).Str("name", name).Msg("client already registered")
		return
	}
	h.seq++
	client.Username = name
	client.joined = h.seq
	h.mu.Unlock()

	h.logger.Info().Str("user", name).Msg("user joined")
	h.broadcastRoster()
}

// relay stamps the sender on a message and sends it to every registered
// client, the sender included. Plain text bodies are accepted as well as
// {"message": ...} payloads.
func (h *Hub) relay(client *Client, data string) {
	h.mu.RLock()
	from := client.Username
	h.mu.RUnlock()
	if from == "" {
		h.logger.Warn().Str("remote", client.Conn.RemoteAddr()).Msg("message before register")
		return
	}

	body := data
	var p protocol.Payload
	if err := json.Unmarshal([]byte(data), &p); err == nil {
		body = p.Message
	}

	payload, err := json.Marshal(protocol.Payload{From: from, Message: body})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode message payload")
		return
	}
	s := string(payload)
	h.logger.Debug().Str("from", from).Msg("relaying message")
	h.broadcast(protocol.Frame{Kind: protocol.KindMessage, Data: &s})
}

func (h *Hub) broadcastRoster() {
	h.bmu.Lock()
	defer h.bmu.Unlock()

	h.mu.RLock()
	roster := h.rosterLocked()
	h.mu.RUnlock()

	h.broadcastLocked(protocol.Frame{Kind: protocol.KindUsers, DataList: roster})
}

func (h *Hub) broadcast(f protocol.Frame) {
	h.bmu.Lock()
	defer h.bmu.Unlock()
	h.broadcastLocked(f)
}

// broadcastLocked queues f on every registered client. bmu must be held.
func (h *Hub) broadcastLocked(f protocol.Frame) {
	data, err := h.codec.Marshal(f)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encode frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.Username == "" {
			continue
		}
		select {
		case client.Outgoing <- data:
		default:
			h.logger.Warn().Str("user", client.Username).Msg("client queue full, skipping")
		}
	}
}
