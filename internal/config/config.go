// Package config loads the ipcecho configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the ipcecho configuration.
type Config struct {
	// ServerAddr is the datagram echo server address.
	ServerAddr string `yaml:"server_addr"`
	// StreamAddr is the length-prefixed stream listener address. Empty
	// disables the stream listener.
	StreamAddr string `yaml:"stream_addr"`
	// ClientAddr is the local address the client binds; port 0 picks one.
	ClientAddr string `yaml:"client_addr"`

	PollInterval      time.Duration `yaml:"poll_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	StreamReadTimeout time.Duration `yaml:"stream_read_timeout"`
	MaxMessageSize    int           `yaml:"max_message_size"`
	PinSource         bool          `yaml:"pin_source"`

	// ExitMessage stops the server when received verbatim.
	ExitMessage string `yaml:"exit_message"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		ServerAddr:        "127.0.0.1:12345",
		StreamAddr:        "",
		ClientAddr:        "127.0.0.1:0",
		PollInterval:      100 * time.Millisecond,
		ReadTimeout:       500 * time.Millisecond,
		StreamReadTimeout: 5 * time.Second,
		MaxMessageSize:    512,
		ExitMessage:       "exit",
		LogLevel:          "info",
	}
}

// DefaultPath returns the default config file path: ~/.ipcecho/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ipcecho", "config.yaml")
	}
	return filepath.Join(home, ".ipcecho", "config.yaml")
}

// Load reads the configuration from the given YAML file path.
// If the file does not exist, it returns the default Config with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate %s", path)
	}
	return cfg, nil
}

// Validate reports configuration values the endpoints cannot use.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return errors.New("server_addr is required")
	}
	if c.MaxMessageSize <= 0 {
		return errors.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize)
	}
	if c.PollInterval < 0 || c.ReadTimeout < 0 || c.StreamReadTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
