package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "localhost", cfg.CUPS.Host)
	assert.Equal(t, 631, cfg.CUPS.Port)
	assert.Equal(t, 5*time.Minute, cfg.Jobs.TimeoutThreshold)
	assert.Equal(t, 2*time.Second, cfg.Jobs.SyncInterval)
	assert.Equal(t, int64(52428800), cfg.Uploads.MaxSizeBytes)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/does_not_exist.yaml")
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load("testdata/malformed.yaml")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/minimal.yaml"
	writeFile(t, path, `
server:
  port: 8080
database:
  host: localhost
  port: 5432
  database: printtrack
cups:
  host: localhost
auth:
  jwt_secret: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Jobs.TimeoutThreshold)
	assert.Equal(t, 2*time.Second, cfg.Jobs.SyncInterval)
	assert.Equal(t, 631, cfg.CUPS.Port)
	assert.Equal(t, int64(50<<20), cfg.Uploads.MaxSizeBytes)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: "database host is required",
		},
		{
			name:    "missing database name",
			mutate:  func(c *Config) { c.Database.Database = "" },
			wantErr: "database name is required",
		},
		{
			name:    "missing cups host",
			mutate:  func(c *Config) { c.CUPS.Host = "" },
			wantErr: "cups host is required",
		},
		{
			name:    "zero timeout threshold",
			mutate:  func(c *Config) { c.Jobs.TimeoutThreshold = 0 },
			wantErr: "timeout_threshold must be greater than 0",
		},
		{
			name:    "negative sync interval",
			mutate:  func(c *Config) { c.Jobs.SyncInterval = -time.Second },
			wantErr: "sync_interval must be greater than 0",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "jwt_secret is required",
		},
		{
			name: "events enabled without host",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.Exchange = "print.events"
			},
			wantErr: "events host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
