package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if *cfg != *def {
		t.Errorf("cfg = %+v, want defaults %+v", cfg, def)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server_addr: 127.0.0.1:4000
stream_addr: 127.0.0.1:4001
poll_interval: 20ms
read_timeout: 1s
max_message_size: 2048
pin_source: true
exit_message: quit
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerAddr != "127.0.0.1:4000" || cfg.StreamAddr != "127.0.0.1:4001" {
		t.Errorf("addresses = %q, %q", cfg.ServerAddr, cfg.StreamAddr)
	}
	if cfg.PollInterval != 20*time.Millisecond {
		t.Errorf("PollInterval = %v, want 20ms", cfg.PollInterval)
	}
	if cfg.ReadTimeout != time.Second {
		t.Errorf("ReadTimeout = %v, want 1s", cfg.ReadTimeout)
	}
	if cfg.MaxMessageSize != 2048 || !cfg.PinSource || cfg.ExitMessage != "quit" {
		t.Errorf("cfg = %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.StreamReadTimeout != 5*time.Second {
		t.Errorf("StreamReadTimeout = %v, want 5s", cfg.StreamReadTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "server_addr: [unterminated"},
		{"empty server", "server_addr: \"\""},
		{"zero size", "max_message_size: 0"},
		{"negative duration", "read_timeout: -1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	if filepath.Base(DefaultPath()) != "config.yaml" {
		t.Errorf("DefaultPath() = %s", DefaultPath())
	}
}
