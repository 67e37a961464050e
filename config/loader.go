// Package config provides unified configuration loading: defaults, then a
// YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("NODEFLOW").
//	    Load()
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds storage settings. Driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// EngineConfig holds execution engine settings.
type EngineConfig struct {
	MaxSteps    int           `yaml:"max_steps"`
	EvalTimeout time.Duration `yaml:"eval_timeout"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "nodeflow.db",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Engine: EngineConfig{
			MaxSteps:    1000,
			EvalTimeout: 5 * time.Second,
		},
	}
}

// Loader loads configuration with defaults, YAML file, and env overrides,
// in that priority order.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{envPrefix: "NODEFLOW"}
}

// WithConfigPath sets the YAML file path; an empty path skips the file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load resolves the final configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		raw, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	l.envInt("SERVER_HTTP_PORT", &cfg.Server.HTTPPort)
	l.envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	l.envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	l.envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	l.envString("DATABASE_DRIVER", &cfg.Database.Driver)
	l.envString("DATABASE_DSN", &cfg.Database.DSN)
	l.envInt("DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)
	l.envInt("DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	l.envDuration("DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
	l.envString("LOG_LEVEL", &cfg.Log.Level)
	l.envString("LOG_FORMAT", &cfg.Log.Format)
	l.envInt("ENGINE_MAX_STEPS", &cfg.Engine.MaxSteps)
	l.envDuration("ENGINE_EVAL_TIMEOUT", &cfg.Engine.EvalTimeout)
}

func (l *Loader) envString(key string, target *string) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		*target = v
	}
}

func (l *Loader) envInt(key string, target *int) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func (l *Loader) envDuration(key string, target *time.Duration) {
	if v, ok := os.LookupEnv(l.envPrefix + "_" + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// Validate checks the resolved configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port %d", c.Server.HTTPPort)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("engine max_steps must be positive")
	}
	return nil
}
