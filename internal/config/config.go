// Package config loads marketplace configuration from the environment, with
// an optional YAML overlay for deployments that prefer files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reminders RemindersConfig `yaml:"reminders"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST,default=127.0.0.1" yaml:"host"`
	Port         int           `env:"SERVER_PORT,default=8000" yaml:"port"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=10s" yaml:"read_timeout"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s" yaml:"write_timeout"`
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the embedded SQLite database.
type DatabaseConfig struct {
	Path      string        `env:"DATABASE_PATH,default=./marketplace.db" yaml:"path"`
	OpTimeout time.Duration `env:"DATABASE_OP_TIMEOUT,default=120s" yaml:"op_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format string `env:"LOG_FORMAT,default=text" yaml:"format"`
}

// RemindersConfig configures the reminder dispatch loop.
type RemindersConfig struct {
	Interval  time.Duration `env:"REMINDER_INTERVAL,default=60s" yaml:"interval"`
	BatchSize int           `env:"REMINDER_BATCH_SIZE,default=50" yaml:"batch_size"`
}

// Load reads .env (when present), decodes the environment and then applies
// the YAML overlay named by MARKETPLACE_CONFIG, if set. Environment values
// act as defaults; the overlay wins where it sets a field.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("MARKETPLACE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config overlay: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config overlay: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.OpTimeout <= 0 {
		c.Database.OpTimeout = 120 * time.Second
	}
	if c.Reminders.Interval <= 0 {
		c.Reminders.Interval = time.Minute
	}
	if c.Reminders.BatchSize <= 0 {
		c.Reminders.BatchSize = 50
	}
	return nil
}
