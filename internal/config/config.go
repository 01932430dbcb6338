// Package config loads client and server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when present.
const DefaultEnvFile = ".env"

var validate = validator.New()

// Client defines the client-side environment variables.
type Client struct {
	ServerURL    string        `env:"CHAT_SERVER_URL,default=ws://localhost:8080/ws" validate:"required,url,startswith=ws"`
	Username     string        `env:"CHAT_USERNAME" validate:"required,max=64"`
	Codec        string        `env:"CHAT_CODEC,default=json" validate:"oneof=json binary"`
	LogLevel     string        `env:"LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error disabled"`
	Color        bool          `env:"CHAT_COLOR,default=true"`
	DialTimeout  time.Duration `env:"CHAT_DIAL_TIMEOUT,default=10s" validate:"gte=0"`
	WriteTimeout time.Duration `env:"CHAT_WRITE_TIMEOUT,default=5s" validate:"gte=0"`
}

// Server defines the relay server environment variables.
type Server struct {
	ListenAddr string `env:"CHAT_LISTEN_ADDR,default=:8080" validate:"required,hostname_port|startswith=:"`
	TCPAddr    string `env:"CHAT_TCP_ADDR" validate:"omitempty,hostname_port|startswith=:"`
	Codec      string `env:"CHAT_CODEC,default=json" validate:"oneof=json binary"`
	LogLevel   string `env:"LOG_LEVEL,default=info" validate:"oneof=trace debug info warn error disabled"`
}

// LoadClient reads the client configuration. Variables from the env files
// (DefaultEnvFile when none is given) fill in what the process environment
// lacks; missing files are skipped.
func LoadClient(envFiles ...string) (Client, error) {
	var c Client
	if err := load(&c, envFiles); err != nil {
		return Client{}, err
	}
	return c, nil
}

// LoadServer reads the server configuration the same way as LoadClient.
func LoadServer(envFiles ...string) (Server, error) {
	var s Server
	if err := load(&s, envFiles); err != nil {
		return Server{}, err
	}
	return s, nil
}

func load(target any, envFiles []string) error {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config error: load %s: %w", f, err)
		}
	}
	if _, err := env.UnmarshalFromEnviron(target); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// Validate checks the client configuration.
func (c Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	if strings.TrimSpace(c.Username) != c.Username {
		return fmt.Errorf("invalid client config: username %q has surrounding whitespace", c.Username)
	}
	return nil
}

// Validate checks the server configuration.
func (s Server) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}
	return nil
}
