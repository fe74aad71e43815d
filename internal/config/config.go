// Package config loads server configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	EventLog EventLogConfig `mapstructure:"eventlog"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Cards    CardsConfig    `mapstructure:"cards"`
}

// ServerConfig covers the websocket gateway and session handling.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	MaxSessions  int           `mapstructure:"max_sessions"`
	LeasePeriod  time.Duration `mapstructure:"lease_period"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EventLogConfig selects the action log backend. Backend is one of
// "memory", "sqlite", or "postgres".
type EventLogConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// CardsConfig points at the card definitions loaded into the catalog.
type CardsConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads the YAML file at configPath. Every key can be overridden
// through the environment with a CONCLAVE_ prefix, dots replaced by
// underscores (CONCLAVE_SERVER_ADDRESS, CONCLAVE_EVENTLOG_BACKEND, ...).
// A missing file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CONCLAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":17171")
	v.SetDefault("server.max_sessions", 512)
	v.SetDefault("server.lease_period", 5*time.Minute)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.ping_interval", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("eventlog.backend", "sqlite")
	v.SetDefault("eventlog.path", "conclave.db")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9090")

	v.SetDefault("cards.path", "data/cards.json")
}

func (c *Config) validate() error {
	switch c.EventLog.Backend {
	case "memory":
	case "sqlite":
		if c.EventLog.Path == "" {
			return fmt.Errorf("eventlog.path required for sqlite backend")
		}
	case "postgres":
		if c.EventLog.DSN == "" {
			return fmt.Errorf("eventlog.dsn required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown eventlog backend %q", c.EventLog.Backend)
	}
	if c.Server.MaxSessions <= 0 {
		return fmt.Errorf("server.max_sessions must be positive")
	}
	return nil
}
