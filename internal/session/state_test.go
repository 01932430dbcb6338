package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/roomchat/internal/session"
)

func TestAvatar(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "alice", want: "https://avatars.dicebear.com/api/adventurer-neutral/alice.svg"},
		{name: "bob smith", want: "https://avatars.dicebear.com/api/adventurer-neutral/bob%20smith.svg"},
		{name: "a/b", want: "https://avatars.dicebear.com/api/adventurer-neutral/a%2Fb.svg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, session.Avatar(tt.name))
			assert.Equal(t, session.Avatar(tt.name), session.Avatar(tt.name))
		})
	}
}

func TestIsAnimatedMedia(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{body: "https://media.example.com/party.gif", want: true},
		{body: "https://media.example.com/PARTY.GIF ", want: true},
		{body: "https://media.example.com/party.png", want: false},
		{body: "gif me", want: false},
		{body: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, session.IsAnimatedMedia(tt.body))
			assert.Equal(t, tt.want, session.ChatMessage{Body: tt.body}.IsAnimatedMedia())
		})
	}
}

func TestState_AvatarFor(t *testing.T) {
	st := session.State{
		SelfName: "alice",
		Users: []session.UserProfile{
			{Name: "bob", Avatar: "https://cdn.example.com/bob.png"},
		},
	}

	assert.Equal(t, "https://cdn.example.com/bob.png", st.AvatarFor("bob"))
	assert.Equal(t, session.Avatar("carol"), st.AvatarFor("carol"))
}
