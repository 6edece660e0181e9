package octohub

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultHeartbeatTimeout is how long the client waits for a pong after
// sending a ping before it treats the connection as dead.
const DefaultHeartbeatTimeout = 10 * time.Second

const (
	defaultHeartbeatInterval    = 10 * time.Second
	defaultReconnectInterval    = 5 * time.Second
	defaultMaxReconnectAttempts = 10
	defaultDialTimeout          = 10 * time.Second
	defaultWriteTimeout         = 10 * time.Second
)

// Config holds the configuration for a Client. Zero values select defaults.
type Config struct {
	// HeartbeatInterval is the period between pings while connected.
	// Fallback: OCTOHUB_HEARTBEAT_INTERVAL environment variable. Default 10s.
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long to wait for a pong. Default DefaultHeartbeatTimeout.
	HeartbeatTimeout time.Duration

	// ReconnectInterval is the fixed delay before each automatic reconnect.
	// Fallback: OCTOHUB_RECONNECT_INTERVAL environment variable. Default 5s.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts is the reconnect ceiling. Once the number of
	// consecutive failures reaches it the client stops retrying.
	// Fallback: OCTOHUB_MAX_RECONNECT_ATTEMPTS environment variable. Default 10.
	MaxReconnectAttempts int

	// DialTimeout bounds the WebSocket handshake. Default 10s.
	DialTimeout time.Duration

	// WriteTimeout bounds a single frame write. Default 10s.
	WriteTimeout time.Duration
}

// resolveConfig fills empty fields from environment variables and defaults, and validates the result.
func resolveConfig(cfg Config) (Config, error) {
	var err error
	if cfg.HeartbeatInterval == 0 {
		if cfg.HeartbeatInterval, err = envDuration("OCTOHUB_HEARTBEAT_INTERVAL", defaultHeartbeatInterval); err != nil {
			return cfg, err
		}
	}
	if cfg.ReconnectInterval == 0 {
		if cfg.ReconnectInterval, err = envDuration("OCTOHUB_RECONNECT_INTERVAL", defaultReconnectInterval); err != nil {
			return cfg, err
		}
	}
	if cfg.MaxReconnectAttempts == 0 {
		if v := os.Getenv("OCTOHUB_MAX_RECONNECT_ATTEMPTS"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return cfg, fmt.Errorf("parse OCTOHUB_MAX_RECONNECT_ATTEMPTS: %w", err)
			}
			cfg.MaxReconnectAttempts = n
		} else {
			cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
		}
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.HeartbeatInterval < 0 || cfg.HeartbeatTimeout < 0 || cfg.ReconnectInterval < 0 {
		return cfg, fmt.Errorf("heartbeat and reconnect intervals must not be negative")
	}
	if cfg.MaxReconnectAttempts < 0 {
		return cfg, fmt.Errorf("MaxReconnectAttempts must not be negative (got %d)", cfg.MaxReconnectAttempts)
	}
	if cfg.DialTimeout < 0 || cfg.WriteTimeout < 0 {
		return cfg, fmt.Errorf("dial and write timeouts must not be negative")
	}

	return cfg, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
