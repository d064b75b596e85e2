// Package config loads the daemon configuration from an optional TOML
// file with environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Transport kinds accepted by the sync layer.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
)

const (
	defaultBackendURL   = "http://localhost:8000/api"
	defaultTransport    = TransportWebSocket
	defaultPollSeconds  = 10
	defaultDBPath       = "haulsync.db"
	defaultListenAddr   = ":9080"
	defaultShoutrrrURL  = ""
	defaultConfigEnvVar = "HAULSYNC_CONFIG"
)

// Config is the full daemon configuration.
type Config struct {
	BackendURL  string `toml:"backend_url"`
	APIToken    string `toml:"api_token"`
	Transport   string `toml:"transport"`
	PollSeconds int    `toml:"poll_seconds"`
	DBPath      string `toml:"db_path"`
	ListenAddr  string `toml:"listen_addr"`
	ShoutrrrURL string `toml:"shoutrrr_url"`
}

// Load reads the config file named by HAULSYNC_CONFIG (when set and
// present), then applies environment overrides. A missing file is not
// an error; every field has a default.
func Load() (Config, error) {
	cfg := Config{
		BackendURL:  defaultBackendURL,
		Transport:   defaultTransport,
		PollSeconds: defaultPollSeconds,
		DBPath:      defaultDBPath,
		ListenAddr:  defaultListenAddr,
		ShoutrrrURL: defaultShoutrrrURL,
	}

	if path := os.Getenv(defaultConfigEnvVar); path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := toml.Unmarshal(body, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.APIToken = getEnv("API_TOKEN", cfg.APIToken)
	cfg.Transport = getEnv("TRANSPORT", cfg.Transport)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.ShoutrrrURL = getEnv("SHOUTRRR_URL", cfg.ShoutrrrURL)
	if v := os.Getenv("POLL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("POLL_SECONDS: %w", err)
		}
		cfg.PollSeconds = n
	}

	if cfg.Transport != TransportWebSocket && cfg.Transport != TransportPolling {
		return Config{}, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if cfg.PollSeconds < 1 {
		return Config{}, fmt.Errorf("poll_seconds must be positive, got %d", cfg.PollSeconds)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
