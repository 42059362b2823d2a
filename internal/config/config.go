package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the chatsyncd config file (~/.chatsync/config.toml).
type Config struct {
	// RemoteURL is the base URL of the chat service, e.g. "https://reports.example.com".
	RemoteURL string `toml:"remote_url"`
	// AuthToken is the bearer token presented on every request.
	AuthToken string `toml:"auth_token"`
	// UserID is the id of the authenticated user.
	UserID string `toml:"user_id"`
	// LogPath is where the JSON log file is written.
	LogPath string `toml:"log_path"`
	// MetricsAddr is the listen address for the Prometheus endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `toml:"metrics_addr"`
	// HeartbeatSeconds overrides the presence heartbeat interval. Zero means
	// the 2-minute default.
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
	// RuntimeDir holds the daemon lock file.
	RuntimeDir string `toml:"runtime_dir"`
}

// Default returns a config with defaults filled in.
func Default() *Config {
	return &Config{
		LogPath:     filepath.Join(os.TempDir(), "chatsyncd.log"),
		MetricsAddr: "127.0.0.1:9187",
		RuntimeDir:  filepath.Join(os.TempDir(), "chatsync"),
	}
}

// Load reads config from the given path. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields required to talk to the remote service.
func (c *Config) Validate() error {
	if c.RemoteURL == "" {
		return fmt.Errorf("config: remote_url is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("config: user_id is required")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
