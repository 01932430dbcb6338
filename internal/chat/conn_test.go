package chat_test

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/roomchat/internal/chat"
)

// peer is an in-memory chat.Conn. Frames passed to deliver are returned by
// Read; hangUp makes Read fail with io.EOF.
type peer struct {
	addr  string
	inbox chan []byte
	once  sync.Once

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

var _ chat.Conn = (*peer)(nil)

func newPeer(addr string) *peer {
	return &peer{addr: addr, inbox: make(chan []byte, 10)}
}

func (p *peer) deliver(frame []byte) {
	p.inbox <- frame
}

func (p *peer) hangUp() {
	p.once.Do(func() { close(p.inbox) })
}

func (p *peer) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-p.inbox:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

func (p *peer) Write(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

func (p *peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *peer) RemoteAddr() string {
	return p.addr
}
