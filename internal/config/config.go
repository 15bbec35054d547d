// Package config loads the relay's runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/omochice/support-chat/internal/chat"
)

// Config holds the server settings. Addr serves raw TCP and WebSocket on one
// port; WSAddr and TCPAddr optionally add dedicated listeners.
type Config struct {
	Addr             string        `env:"SUPPORT_CHAT_ADDR" envDefault:":8080"`
	WSAddr           string        `env:"SUPPORT_CHAT_WS_ADDR"`
	TCPAddr          string        `env:"SUPPORT_CHAT_TCP_ADDR"`
	AllowedOrigins   []string      `env:"SUPPORT_CHAT_ALLOWED_ORIGINS" envSeparator:","`
	AckUndeliverable bool          `env:"SUPPORT_CHAT_ACK_UNDELIVERABLE" envDefault:"false"`
	OutgoingBuffer   int           `env:"SUPPORT_CHAT_OUTGOING_BUFFER" envDefault:"32"`
	MaxFrameBytes    int           `env:"SUPPORT_CHAT_MAX_FRAME_BYTES" envDefault:"65536"`
	WriteTimeout     time.Duration `env:"SUPPORT_CHAT_WRITE_TIMEOUT" envDefault:"10s"`
}

// Load parses Config from environment variables and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" && c.WSAddr == "" && c.TCPAddr == "" {
		errs = append(errs, errors.New("at least one listen address is required"))
	}
	if c.OutgoingBuffer <= 0 {
		errs = append(errs, fmt.Errorf("outgoing buffer must be positive, got %d", c.OutgoingBuffer))
	}
	if c.MaxFrameBytes <= 0 {
		errs = append(errs, fmt.Errorf("max frame bytes must be positive, got %d", c.MaxFrameBytes))
	}
	if c.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("write timeout must not be negative, got %s", c.WriteTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// HubOptions translates the config into chat.Hub options.
func (c Config) HubOptions() []chat.Option {
	return []chat.Option{
		chat.WithAckUndeliverable(c.AckUndeliverable),
		chat.WithOutgoingBuffer(c.OutgoingBuffer),
	}
}
