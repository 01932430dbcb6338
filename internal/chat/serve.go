package chat

import "context"

// Serve runs client until its connection fails: frames read from the peer
// are handled by the hub while a writer drains Outgoing into the connection.
// It returns after the writer has stopped and Outgoing is closed; the caller
// still owns closing the connection.
func (h *Hub) Serve(ctx context.Context, client *Client) {
	written := make(chan struct{})
	go func() {
		defer close(written)
		h.writeLoop(ctx, client)
	}()

	h.HandleClient(ctx, client)
	close(client.Outgoing)
	<-written
}

// writeLoop closes the connection after a failed write, which ends the
// reader, and keeps draining Outgoing until Serve closes it.
func (h *Hub) writeLoop(ctx context.Context, client *Client) {
	for data := range client.Outgoing {
		if err := client.Conn.Write(ctx, data); err != nil {
			h.logger.Debug().Err(err).Str("client", client.ID).Msg("failed to write to client")
			_ = client.Conn.Close()
			for range client.Outgoing {
			}
			return
		}
	}
}
