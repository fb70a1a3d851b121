package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server communication
	API APIConfig `json:"api"`

	// Sync behavior
	Sync SyncConfig `json:"sync"`

	// Local persistence
	Storage StorageConfig `json:"storage"`

	// Audit log sink
	Audit AuditConfig `json:"audit"`

	// Logging
	Log LogConfig `json:"log"`
}

// APIConfig for the settings authority endpoint.
type APIConfig struct {
	ServerURL string        `json:"server_url"` // ws(s) or http(s) URL of the sync endpoint
	Token     string        `json:"token,omitempty"`
	Timeout   time.Duration `json:"timeout"`
	UserAgent string        `json:"user_agent"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	ReconnectDelay time.Duration `json:"reconnect_delay"` // Fixed backoff between connect attempts
	AckTimeout     time.Duration `json:"ack_timeout"`     // Per-change confirmation wait
	PingInterval   time.Duration `json:"ping_interval"`   // WebSocket keepalive
	EventBuffer    int           `json:"event_buffer"`    // Notification channel capacity
}

// StorageConfig for local persistence.
type StorageConfig struct {
	DataDir string `json:"data_dir"`
	Backend string `json:"backend"` // "json" or "sqlite"
}

// AuditConfig for the fire-and-forget audit sink.
type AuditConfig struct {
	Endpoint string        `json:"endpoint,omitempty"` // Empty disables delivery
	Timeout  time.Duration `json:"timeout"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // Log file path (empty = stdout)
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".settingsync"

	return &Config{
		API: APIConfig{
			ServerURL: "wss://settings.tradeview.example/sync",
			Timeout:   30 * time.Second,
			UserAgent: "settingsync/1.0",
		},
		Sync: SyncConfig{
			ReconnectDelay: 5 * time.Second,
			AckTimeout:     10 * time.Second,
			PingInterval:   30 * time.Second,
			EventBuffer:    100,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
			Backend: "json",
		},
		Audit: AuditConfig{
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.API.ServerURL == "" {
		return fmt.Errorf("api.server_url is required")
	}
	if c.Sync.ReconnectDelay <= 0 {
		return fmt.Errorf("sync.reconnect_delay must be positive")
	}
	if c.Sync.AckTimeout <= 0 {
		return fmt.Errorf("sync.ack_timeout must be positive")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be json or sqlite, got %q", c.Storage.Backend)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}

// StatePath returns the path holding durable sync state for the
// configured backend.
func (c *Config) StatePath() string {
	if c.Storage.Backend == "sqlite" {
		return filepath.Join(c.Storage.DataDir, "settingsync.db")
	}
	return filepath.Join(c.Storage.DataDir, "state")
}
