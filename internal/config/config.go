package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the replay binary reads.
const EnvPrefix = "REPLAY"

// Config holds all replay service configuration
type Config struct {
	// Server listeners
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"`

	// Buffer settings
	Capacity int `mapstructure:"capacity"`
	// Seed for sampling; 0 draws a random seed at startup
	Seed uint64 `mapstructure:"seed"`

	// Event fan-out; empty URL disables NATS
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`

	// Client settings
	ServerURL      string        `mapstructure:"server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":8081",
		Capacity:        100000,
		NATSSubject:     "replay.buffer",
		ServerURL:       "http://localhost:8080",
		RequestTimeout:  10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
	}
}

// SetDefaults registers the default values with v so environment variables
// resolve even for keys that have no flag.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("grpc_addr", d.GRPCAddr)
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("nats_url", d.NATSURL)
	v.SetDefault("nats_subject", d.NATSSubject)
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("log_level", d.LogLevel)
}

// Load resolves configuration from v, reading REPLAY_* environment
// variables, and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("nats_subject is required when nats_url is set")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses the configured log level
func (c *Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
