package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvPrefix("NODEFLOW_TEST_NONE").Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "nodeflow.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1000, cfg.Engine.MaxSteps)
	assert.Equal(t, 5*time.Second, cfg.Engine.EvalTimeout)
}

func TestLoader_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http_port: 9090
  read_timeout: 5s
database:
  driver: postgres
  dsn: "host=localhost user=nodeflow dbname=nodeflow"
log:
  level: debug
  format: console
engine:
  max_steps: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnvPrefix("NODEFLOW_TEST_NONE").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 500, cfg.Engine.MaxSteps)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/does/not/exist.yaml").Load()
	require.Error(t, err)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9090\n"), 0o600))

	t.Setenv("NODEFLOW_TEST_ENV_SERVER_HTTP_PORT", "7070")
	t.Setenv("NODEFLOW_TEST_ENV_DATABASE_DRIVER", "postgres")
	t.Setenv("NODEFLOW_TEST_ENV_ENGINE_EVAL_TIMEOUT", "2s")

	cfg, err := NewLoader().
		WithConfigPath(path).
		WithEnvPrefix("NODEFLOW_TEST_ENV").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Engine.EvalTimeout)
}

func TestLoader_IgnoresMalformedEnvValues(t *testing.T) {
	t.Setenv("NODEFLOW_TEST_BAD_SERVER_HTTP_PORT", "not-a-number")

	cfg, err := NewLoader().WithEnvPrefix("NODEFLOW_TEST_BAD").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"zero port", func(c *Config) { c.Server.HTTPPort = 0 }, true},
		{"port out of range", func(c *Config) { c.Server.HTTPPort = 70000 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"non-positive max steps", func(c *Config) { c.Engine.MaxSteps = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
