// Package config loads client settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/strand-kv/strand-go/resp"
)

// Config holds the settings shared by the CLI and example programs. All
// values can be set through STRAND_* environment variables.
type Config struct {
	// Network is "tcp" or "unix".
	Network string
	// Addr is host:port for tcp, a socket path for unix.
	Addr string

	// PollInterval bounds how long a driver iteration may block, and so how
	// quickly a stop request is observed.
	PollInterval time.Duration

	MaxElements   int64
	MaxBufferSize int

	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("STRAND")
	v.AutomaticEnv()

	v.SetDefault("network", "tcp")
	v.SetDefault("addr", "localhost:6379")
	v.SetDefault("poll_interval", 100*time.Millisecond)
	v.SetDefault("max_elements", int64(resp.DefaultMaxElements))
	v.SetDefault("max_buffer_size", resp.DefaultMaxBufferSize)
	v.SetDefault("log_level", "info")

	cfg := &Config{
		Network:       v.GetString("network"),
		Addr:          v.GetString("addr"),
		PollInterval:  v.GetDuration("poll_interval"),
		MaxElements:   v.GetInt64("max_elements"),
		MaxBufferSize: v.GetInt("max_buffer_size"),
		LogLevel:      v.GetString("log_level"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Network {
	case "tcp", "unix":
	default:
		return fmt.Errorf("unsupported network %q", c.Network)
	}
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}
