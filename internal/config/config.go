// Package config defines service configuration structures and loading hooks.
package config

import (
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// LeaderboardSize bounds the leaderboard.
	LeaderboardSize int `koanf:"leaderboard_size"`

	// DecisionTimerSeconds is the advisory countdown shown once vitals are in.
	DecisionTimerSeconds int `koanf:"decision_timer_seconds"`

	// Scoring rule overrides.
	UnderBudgetSeconds int `koanf:"under_budget_seconds"`
	UnderBudgetPoints  int `koanf:"under_budget_points"`
	FasterThanAIPoints int `koanf:"faster_than_ai_points"`
	TestsPoints        int `koanf:"tests_points"`

	// CatalogPath points at a scenario YAML file. Empty uses the built-in catalog.
	CatalogPath string `koanf:"catalog_path"`

	// StaticDir is served at / when set. Empty serves the built-in page.
	StaticDir string `koanf:"static_dir"`

	// CORSOrigins is a comma-separated list of allowed origins.
	CORSOrigins string `koanf:"cors_origins"`

	// Websocket relay limits.
	WSSendBuffer      int   `koanf:"ws_send_buffer"`
	WSPingIntervalMS  int   `koanf:"ws_ping_interval_ms"`
	WSReadTimeoutMS   int   `koanf:"ws_read_timeout_ms"`
	WSWriteTimeoutMS  int   `koanf:"ws_write_timeout_ms"`
	WSMaxMessageBytes int64 `koanf:"ws_max_message_bytes"`

	// DedupeSize sets how many client message ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":3000",
		LeaderboardSize:      20,
		DecisionTimerSeconds: 60,
		UnderBudgetSeconds:   30,
		UnderBudgetPoints:    0,
		FasterThanAIPoints:   1,
		TestsPoints:          3,
		CORSOrigins:          "*",
		WSSendBuffer:         64,
		WSPingIntervalMS:     30_000,
		WSReadTimeoutMS:      60_000,
		WSWriteTimeoutMS:     10_000,
		WSMaxMessageBytes:    16 << 10,
		DedupeSize:           1024,
	}
}

// Origins splits CORSOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// UnderBudget returns the decision budget for the under-budget bonus.
func (c *Config) UnderBudget() time.Duration {
	return time.Duration(c.UnderBudgetSeconds) * time.Second
}

// PingInterval returns the websocket keepalive interval.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.WSPingIntervalMS) * time.Millisecond
}

// ReadTimeout returns the websocket read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.WSReadTimeoutMS) * time.Millisecond
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMS) * time.Millisecond
}
