package session

import (
	"fmt"
	"net/url"
	"strings"
)

const avatarTemplate = "https://avatars.dicebear.com/api/adventurer-neutral/%s.svg"

// Avatar returns the avatar URI for name. The same name always yields the
// same URI, so a sender's avatar can be derived without asking the server.
func Avatar(name string) string {
	return fmt.Sprintf(avatarTemplate, url.PathEscape(name))
}

// IsAnimatedMedia reports whether body is a link to an animated image that
// presentation should show inline instead of as text.
func IsAnimatedMedia(body string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(body)), ".gif")
}

// UserProfile is one online participant.
type UserProfile struct {
	Name   string
	Avatar string
}

func newUserProfile(name string) UserProfile {
	return UserProfile{Name: name, Avatar: Avatar(name)}
}

// ChatMessage is one message said in the room.
type ChatMessage struct {
	From string
	Body string
}

// IsAnimatedMedia reports whether the body is an animated image link.
func (m ChatMessage) IsAnimatedMedia() bool {
	return IsAnimatedMedia(m.Body)
}

// State is a read-only snapshot of a session. Its slices must not be
// modified by callers.
type State struct {
	SelfName string
	Users    []UserProfile
	Messages []ChatMessage
}

// IsSelf reports whether name is the local user.
func (s State) IsSelf(name string) bool {
	return name == s.SelfName
}

// AvatarFor returns the avatar of the online user called from, falling back
// to the derived avatar for senders who already left.
func (s State) AvatarFor(from string) string {
	for _, u := range s.Users {
		if u.Name == from {
			return u.Avatar
		}
	}
	return Avatar(from)
}
