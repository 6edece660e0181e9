package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	octohub "github.com/octohub/go-sdk"
	"github.com/rs/zerolog"
)

// octohub-client config.toml key mapping to client settings.
type fileConfig struct {
	BaseURL              string `toml:"base_url"`
	Token                string `toml:"token"`
	ResolvePath          string `toml:"resolve_path"`
	WSURL                string `toml:"ws_url"`
	LogLevel             string `toml:"log_level"`
	HeartbeatInterval    string `toml:"heartbeat_interval"`
	HeartbeatTimeout     string `toml:"heartbeat_timeout"`
	ReconnectInterval    string `toml:"reconnect_interval"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
}

// settings is the merged result of defaults, config file and flags.
type settings struct {
	BaseURL     string
	Token       string
	ResolvePath string
	WSURL       string
	LogLevel    string
	Client      octohub.Config
}

func defaultSettings() settings {
	return settings{LogLevel: "info"}
}

// loadFileConfig overlays the TOML file at path onto s. Keys absent from the
// file keep their current value.
func loadFileConfig(path string, s settings) (settings, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return settings{}, fmt.Errorf("load client config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("base_url") {
		s.BaseURL = strings.TrimSpace(raw.BaseURL)
	}
	if meta.IsDefined("token") {
		s.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("resolve_path") {
		s.ResolvePath = strings.TrimSpace(raw.ResolvePath)
	}
	if meta.IsDefined("ws_url") {
		s.WSURL = strings.TrimSpace(raw.WSURL)
	}
	if meta.IsDefined("log_level") {
		s.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"heartbeat_interval", raw.HeartbeatInterval, &s.Client.HeartbeatInterval},
		{"heartbeat_timeout", raw.HeartbeatTimeout, &s.Client.HeartbeatTimeout},
		{"reconnect_interval", raw.ReconnectInterval, &s.Client.ReconnectInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return settings{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("max_reconnect_attempts") {
		if raw.MaxReconnectAttempts < 1 {
			return settings{}, fmt.Errorf("max_reconnect_attempts must be at least 1 (got %d)", raw.MaxReconnectAttempts)
		}
		s.Client.MaxReconnectAttempts = raw.MaxReconnectAttempts
	}

	return s, nil
}

// resolver picks a fixed URL when one is configured, the HTTP lookup otherwise.
func (s settings) resolver() (octohub.Resolver, error) {
	if s.WSURL != "" {
		return octohub.StaticURL(s.WSURL), nil
	}
	return octohub.NewHTTPResolver(octohub.HTTPResolverConfig{
		BaseURL: s.BaseURL,
		Path:    s.ResolvePath,
		Token:   s.Token,
	})
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "octohub-client").Logger(), nil
}
