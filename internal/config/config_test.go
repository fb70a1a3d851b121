package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeview/settingsync/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Sync.ReconnectDelay)
	assert.Equal(t, "json", cfg.Storage.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "missing server url",
			mutate:  func(c *config.Config) { c.API.ServerURL = "" },
			wantErr: "server_url",
		},
		{
			name:    "zero reconnect delay",
			mutate:  func(c *config.Config) { c.Sync.ReconnectDelay = 0 },
			wantErr: "reconnect_delay",
		},
		{
			name:    "bad backend",
			mutate:  func(c *config.Config) { c.Storage.Backend = "mysql" },
			wantErr: "backend",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoaderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	fileCfg := map[string]interface{}{
		"api": map[string]interface{}{
			"server_url": "wss://staging.example/sync",
		},
		"storage": map[string]interface{}{
			"backend":  "sqlite",
			"data_dir": dir,
		},
	}
	data, err := json.Marshal(fileCfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://staging.example/sync", cfg.API.ServerURL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	// Untouched values keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Sync.ReconnectDelay)
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("SETTINGSYNC_SERVER_URL", "wss://env.example/sync")
	t.Setenv("SETTINGSYNC_RECONNECT_DELAY", "2s")
	t.Setenv("SETTINGSYNC_LOG_LEVEL", "DEBUG")

	cfg, err := config.NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://env.example/sync", cfg.API.ServerURL)
	assert.Equal(t, 2*time.Second, cfg.Sync.ReconnectDelay)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoaderBadEnvDuration(t *testing.T) {
	t.Setenv("SETTINGSYNC_RECONNECT_DELAY", "soon")

	_, err := config.NewLoader("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECONNECT_DELAY")
}

func TestStatePath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = "/var/lib/settingsync"

	assert.Equal(t, filepath.Join("/var/lib/settingsync", "state"), cfg.StatePath())

	cfg.Storage.Backend = "sqlite"
	assert.Equal(t, filepath.Join("/var/lib/settingsync", "settingsync.db"), cfg.StatePath())
}
