// Package chat implements the single-room relay: it tracks registered
// participants and rebroadcasts rosters and messages to every peer.
package chat

import "context"

// Conn is the hub's view of one peer. Implementations do their own framing;
// the hub only ever sees whole encoded frames.
type Conn interface {
	// Read blocks until the peer sends a frame. Any error ends the peer.
	Read(ctx context.Context) ([]byte, error)
	// Write delivers one encoded frame. Only Serve's writer calls it.
	Write(ctx context.Context, frame []byte) error
	Close() error
	// RemoteAddr identifies the peer in logs.
	RemoteAddr() string
}
