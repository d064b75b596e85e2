package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport != TransportWebSocket || cfg.ListenAddr != ":9080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PollSeconds != 10 || cfg.DBPath != "haulsync.db" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haulsync.toml")
	body := []byte("backend_url = \"https://api.example.com\"\ntransport = \"polling\"\npoll_seconds = 30\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HAULSYNC_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackendURL != "https://api.example.com" || cfg.Transport != TransportPolling || cfg.PollSeconds != 30 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "haulsync.toml")
	if err := os.WriteFile(path, []byte("transport = \"polling\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HAULSYNC_CONFIG", path)
	t.Setenv("TRANSPORT", "websocket")
	t.Setenv("API_TOKEN", "tok-123")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport != TransportWebSocket || cfg.APIToken != "tok-123" {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsUnknownTransport(t *testing.T) {
	t.Setenv("TRANSPORT", "carrier-pigeon")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown transport")
	}
}

func TestLoadRejectsBadPollSeconds(t *testing.T) {
	t.Setenv("POLL_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-positive poll interval")
	}
}
