package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/config"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("CHAT_USERNAME", "alice")

	c, err := config.LoadClient(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, config.Client{
		ServerURL:    "ws://localhost:8080/ws",
		Username:     "alice",
		Codec:        "json",
		LogLevel:     "info",
		Color:        true,
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, c)
	assert.NoError(t, c.Validate())
}

func TestLoadClient_FromEnvironment(t *testing.T) {
	t.Setenv("CHAT_SERVER_URL", "wss://chat.example.com/ws")
	t.Setenv("CHAT_USERNAME", "bob")
	t.Setenv("CHAT_CODEC", "binary")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CHAT_COLOR", "false")
	t.Setenv("CHAT_DIAL_TIMEOUT", "2s")

	c, err := config.LoadClient(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/ws", c.ServerURL)
	assert.Equal(t, "bob", c.Username)
	assert.Equal(t, "binary", c.Codec)
	assert.Equal(t, "debug", c.LogLevel)
	assert.False(t, c.Color)
	assert.Equal(t, 2*time.Second, c.DialTimeout)
	assert.NoError(t, c.Validate())
}

func TestLoadClient_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.env")
	require.NoError(t, os.WriteFile(path, []byte("CHAT_USERNAME=carol\n"), 0o600))
	t.Setenv("CHAT_USERNAME", "")
	require.NoError(t, os.Unsetenv("CHAT_USERNAME"))

	c, err := config.LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "carol", c.Username)
}

func TestClient_Validate(t *testing.T) {
	valid := config.Client{
		ServerURL: "ws://localhost:8080/ws",
		Username:  "alice",
		Codec:     "json",
		LogLevel:  "info",
	}

	tests := []struct {
		name   string
		modify func(*config.Client)
	}{
		{name: "missing username", modify: func(c *config.Client) { c.Username = "" }},
		{name: "padded username", modify: func(c *config.Client) { c.Username = " alice" }},
		{name: "long username", modify: func(c *config.Client) { c.Username = strings.Repeat("a", 65) }},
		{name: "http url", modify: func(c *config.Client) { c.ServerURL = "http://localhost:8080/ws" }},
		{name: "not a url", modify: func(c *config.Client) { c.ServerURL = "localhost" }},
		{name: "unknown codec", modify: func(c *config.Client) { c.Codec = "xml" }},
		{name: "unknown level", modify: func(c *config.Client) { c.LogLevel = "loud" }},
		{name: "negative timeout", modify: func(c *config.Client) { c.DialTimeout = -time.Second }},
	}

	require.NoError(t, valid.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadServer(t *testing.T) {
	t.Setenv("CHAT_LISTEN_ADDR", "127.0.0.1:9000")

	s, err := config.LoadServer(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", s.ListenAddr)
	assert.Equal(t, "json", s.Codec)
	assert.Empty(t, s.TCPAddr)
	assert.NoError(t, s.Validate())

	s.TCPAddr = ":9001"
	assert.NoError(t, s.Validate())

	s.ListenAddr = ":8080"
	assert.NoError(t, s.Validate())

	s.Codec = "yaml"
	assert.Error(t, s.Validate())
}
