package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all daemon configuration.
type Config struct {
	Fifo    FifoConfig
	Pipe    PipeConfig
	Ops     OpsConfig
	Logging LogConfig
}

// FifoConfig holds rendezvous channel configuration.
type FifoConfig struct {
	Path          string        `envconfig:"IPC_FIFO_PATH" default:"/tmp/ipckit.fifo"`
	Workers       int           `envconfig:"IPC_FIFO_WORKERS" default:"4"`
	OpenRetries   int           `envconfig:"IPC_FIFO_OPEN_RETRIES" default:"40"`
	SweepInterval time.Duration `envconfig:"IPC_FIFO_SWEEP_INTERVAL" default:"5m"`
	SweepMaxAge   time.Duration `envconfig:"IPC_FIFO_SWEEP_MAX_AGE" default:"10m"`
}

// PipeConfig holds process-pipe manager configuration.
type PipeConfig struct {
	Shell      string `envconfig:"IPC_SHELL" default:"/bin/sh"`
	MaxStreams int    `envconfig:"IPC_MAX_STREAMS" default:"256"`
}

// OpsConfig holds the operational HTTP endpoint configuration.
type OpsConfig struct {
	Port    string `envconfig:"OPS_PORT" default:"8600"`
	Host    string `envconfig:"OPS_HOST" default:"0.0.0.0"`
	Enabled bool   `envconfig:"OPS_ENABLED" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Fifo: FifoConfig{
			Path:          "/tmp/ipckit.fifo",
			Workers:       4,
			OpenRetries:   40,
			SweepInterval: 5 * time.Minute,
			SweepMaxAge:   10 * time.Minute,
		},
		Pipe: PipeConfig{
			Shell:      "/bin/sh",
			MaxStreams: 256,
		},
		Ops: OpsConfig{
			Port:    "8600",
			Host:    "0.0.0.0",
			Enabled: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
