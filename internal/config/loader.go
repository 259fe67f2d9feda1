package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "TRIAGE_"
	envConfig = "TRIAGE_CONFIG"
	envPort   = "PORT"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. PORT, when no addr is set by a later layer
//  3. file (YAML) if TRIAGE_CONFIG is set
//  4. env (prefix TRIAGE_)
func Load(_ context.Context) (*Config, error) {
	cfg := *New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// TRIAGE_LEADERBOARD_SIZE -> leaderboard_size
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	if port := os.Getenv(envPort); port != "" && !k.Exists("addr") {
		cfg.Addr = ":" + port
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	_, port, err := net.SplitHostPort(c.Addr)
	if err != nil {
		return fmt.Errorf("%w: addr %q: %w", ErrInvalidConfig, c.Addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("%w: addr %q: port out of range", ErrInvalidConfig, c.Addr)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}

	positive := []struct {
		key   string
		value int64
	}{
		{"leaderboard_size", int64(c.LeaderboardSize)},
		{"decision_timer_seconds", int64(c.DecisionTimerSeconds)},
		{"under_budget_seconds", int64(c.UnderBudgetSeconds)},
		{"ws_send_buffer", int64(c.WSSendBuffer)},
		{"ws_ping_interval_ms", int64(c.WSPingIntervalMS)},
		{"ws_read_timeout_ms", int64(c.WSReadTimeoutMS)},
		{"ws_write_timeout_ms", int64(c.WSWriteTimeoutMS)},
		{"ws_max_message_bytes", c.WSMaxMessageBytes},
		{"dedupe_size", int64(c.DedupeSize)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.key, p.value)
		}
	}

	points := []struct {
		key   string
		value int
	}{
		{"under_budget_points", c.UnderBudgetPoints},
		{"faster_than_ai_points", c.FasterThanAIPoints},
		{"tests_points", c.TestsPoints},
	}
	for _, p := range points {
		if p.value < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalidConfig, p.key, p.value)
		}
	}

	if c.WSPingIntervalMS >= c.WSReadTimeoutMS {
		return fmt.Errorf("%w: ws_ping_interval_ms must be below ws_read_timeout_ms", ErrInvalidConfig)
	}
	return nil
}
