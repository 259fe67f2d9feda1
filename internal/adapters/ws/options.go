package ws

import (
	"net/http"
	"time"

	"github.com/okian/triagebooth/internal/domain/dedupe"
	"github.com/okian/triagebooth/pkg/logger"
)

// Config holds websocket connection limits.
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns the default connection limits.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 << 10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithConfig replaces the connection limits. Zero fields keep their defaults.
func WithConfig(c Config) Option {
	return func(h *Hub) {
		if c.WriteTimeout > 0 {
			h.cfg.WriteTimeout = c.WriteTimeout
		}
		if c.ReadTimeout > 0 {
			h.cfg.ReadTimeout = c.ReadTimeout
		}
		if c.PingInterval > 0 {
			h.cfg.PingInterval = c.PingInterval
		}
		if c.MaxMessageSize > 0 {
			h.cfg.MaxMessageSize = c.MaxMessageSize
		}
		if c.ReadBufferSize > 0 {
			h.cfg.ReadBufferSize = c.ReadBufferSize
		}
		if c.WriteBufferSize > 0 {
			h.cfg.WriteBufferSize = c.WriteBufferSize
		}
		if c.CheckOrigin != nil {
			h.cfg.CheckOrigin = c.CheckOrigin
		}
	}
}

// WithDeduper sets the window used to drop re-sent message ids.
func WithDeduper(d dedupe.Deduper) Option {
	return func(h *Hub) {
		if d != nil {
			h.dedupe = d
		}
	}
}
