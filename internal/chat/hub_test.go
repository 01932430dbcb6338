package chat_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/pkg/protocol"
)

func newHub() *chat.Hub {
	return chat.NewHub(protocol.JSON, zerolog.Nop())
}

// join connects a peer, registers name and drains the roster frame the
// peer receives for its own join.
func join(t *testing.T, hub *chat.Hub, name string) (*chat.Client, *peer) {
	t.Helper()
	conn := newPeer("127.0.0.1:1234")
	client := chat.NewClient(conn, 10)
	hub.Register(client)
	go hub.HandleClient(context.Background(), client)

	conn.deliver(encode(t, protocol.EncodeRegister(name)))
	f := next(t, client)
	require.Equal(t, protocol.KindUsers, f.Kind)
	require.Contains(t, f.DataList, name)
	return client, conn
}

func encode(t *testing.T, f protocol.Frame) []byte {
	t.Helper()
	data, err := protocol.JSON.Marshal(f)
	require.NoError(t, err)
	return data
}

func next(t *testing.T, client *chat.Client) protocol.Frame {
	t.Helper()
	select {
	case data := <-client.Outgoing:
		f, err := protocol.JSON.Unmarshal(data)
		require.NoError(t, err)
		return f
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return protocol.Frame{}
	}
}

func payload(t *testing.T, f protocol.Frame) protocol.Payload {
	t.Helper()
	require.Equal(t, protocol.KindMessage, f.Kind)
	var p protocol.Payload
	require.NoError(t, json.Unmarshal([]byte(f.DataString()), &p))
	return p
}

func TestHub_Register(t *testing.T) {
	hub := newHub()
	client := &chat.Client{
		Conn:     newPeer("127.0.0.1:1234"),
		Username: "testuser",
		Outgoing: make(chan []byte, 10),
	}

	hub.Register(client)

	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_Register_MultipleClients(t *testing.T) {
	hub := newHub()

	for i := 0; i < 3; i++ {
		hub.Register(chat.NewClient(newPeer("127.0.0.1:1234"), 10))
	}

	assert.Equal(t, 3, hub.ClientCount())
	assert.Empty(t, hub.Roster(), "unregistered peers are not online")
}

func TestHub_RegisterBroadcastsRoster(t *testing.T) {
	hub := newHub()
	alice, _ := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")

	f := next(t, alice)
	assert.Equal(t, protocol.KindUsers, f.Kind)
	assert.Equal(t, []string{"alice", "bob"}, f.DataList)
	assert.Empty(t, bob.Outgoing)
	assert.Equal(t, []string{"alice", "bob"}, hub.Roster())
}

func TestHub_RelayStampsSenderAndEchoes(t *testing.T) {
	hub := newHub()
	alice, aliceConn := join(t, hub, "alice")
	bob, _ := join(t, hub, "bob")
	next(t, alice)

	msg, err := protocol.EncodeMessage("hi bob")
	require.NoError(t, err)
	aliceConn.deliver(encode(t, msg))

	for _, c := range []*chat.Client{alice, bob} {
		p := payload(t, next(t, c))
		assert.Equal(t, protocol.Payload{From: "alice", Message: "hi bob"}, p)
	}
}

func TestHub_RelayAcceptsPlainText(t *testing.T) {
	hub := newHub()
	alice, conn := join(t, hub, "alice")

	text := "plain words"
	conn.deliver(encode(t, protocol.Frame{Kind: protocol.KindMessage, Data: &text}))

	assert.Equal(t, protocol.Payload{From: "alice", Message: "plain words"}, payload(t, next(t, alice)))
}

func TestHub_IgnoresMessagesBeforeRegister(t *testing.T) {
	hub := newHub()
	alice, _ := join(t, hub, "alice")

	conn := newPeer("127.0.0.1:9999")
	anon := chat.NewClient(conn, 10)
	hub.Register(anon)
	go hub.HandleClient(context.Background(), anon)

	msg, err := protocol.EncodeMessage("who am i")
	require.NoError(t, err)
	conn.deliver(encode(t, msg))
	conn.deliver([]byte("not a frame"))
	conn.deliver(encode(t, protocol.EncodeRegister("carol")))

	f := next(t, alice)
	assert.Equal(t, protocol.KindUsers, f.Kind, "only carol's join reaches alice")
	assert.Equal(t, []string{"alice", "carol"}, f.DataList)
}

func TestHub_UnregisterBroadcastsRoster(t *testing.T) {
	hub := newHub()
	alice, _ := join(t, hub, "alice")
	_, bobConn := join(t, hub, "bob")
	next(t, alice)

	bobConn.hangUp()

	f := next(t, alice)
	assert.Equal(t, protocol.KindUsers, f.Kind)
	assert.Equal(t, []string{"alice"}, f.DataList)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestHub_SecondRegisterIsIgnored(t *testing.T) {
	hub := newHub()
	alice, conn := join(t, hub, "alice")

	conn.deliver(encode(t, protocol.EncodeRegister("mallory")))
	msg, err := protocol.EncodeMessage("still alice")
	require.NoError(t, err)
	conn.deliver(encode(t, msg))

	assert.Equal(t, "alice", payload(t, next(t, alice)).From)
	assert.Equal(t, []string{"alice"}, hub.Roster())
}
