// Package config defines spotbookd's configuration. Config is loaded
// from a YAML file (default: configs/config.yaml) with every field
// overridable via SPOTBOOK_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	EventPort               int           `mapstructure:"event_port"`
	OrderPort               int           `mapstructure:"order_port"`
	SnapshotPath            string        `mapstructure:"snapshot_path"`
	SnapshotIntervalSeconds int           `mapstructure:"snapshot_interval_seconds"`
	MetricsPort             int           `mapstructure:"metrics_port"`
	ExpirySweepInterval     time.Duration `mapstructure:"expiry_sweep_interval"`
	Dust                    uint64        `mapstructure:"dust"`
	NATS                    NATSConfig    `mapstructure:"nats"`
	Logging                 LoggingConfig `mapstructure:"logging"`
}

// NATSConfig points the event-fan-out backend at a NATS server.
type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	URL         string `mapstructure:"url"`
	SubjectRoot string `mapstructure:"subject_root"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SnapshotInterval is SnapshotIntervalSeconds as a time.Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSeconds) * time.Second
}

func defaults() Config {
	return Config{
		EventPort:               5556,
		OrderPort:               5555,
		SnapshotPath:            "data/snapshot.msgpack",
		SnapshotIntervalSeconds: 30,
		MetricsPort:             9090,
		ExpirySweepInterval:     time.Second,
		Dust:                    0,
		NATS:                    NATSConfig{Enabled: false, URL: "nats://127.0.0.1:4222", SubjectRoot: "spotbook.events"},
		Logging:                 LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads config from a YAML file with env var overrides, falling
// back entirely to defaults when path does not exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := defaults()
	applyDefaults(v, cfg)

	v.SetConfigFile(path)
	v.SetEnvPrefix("SPOTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// An explicit SetConfigFile path that is absent surfaces as a plain
		// not-exist error, not ConfigFileNotFoundError.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("event_port", cfg.EventPort)
	v.SetDefault("order_port", cfg.OrderPort)
	v.SetDefault("snapshot_path", cfg.SnapshotPath)
	v.SetDefault("snapshot_interval_seconds", cfg.SnapshotIntervalSeconds)
	v.SetDefault("metrics_port", cfg.MetricsPort)
	v.SetDefault("expiry_sweep_interval", cfg.ExpirySweepInterval)
	v.SetDefault("dust", cfg.Dust)
	v.SetDefault("nats.enabled", cfg.NATS.Enabled)
	v.SetDefault("nats.url", cfg.NATS.URL)
	v.SetDefault("nats.subject_root", cfg.NATS.SubjectRoot)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.EventPort <= 0 {
		return fmt.Errorf("event_port must be > 0")
	}
	if c.OrderPort <= 0 {
		return fmt.Errorf("order_port must be > 0")
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path is required")
	}
	if c.SnapshotIntervalSeconds <= 0 {
		return fmt.Errorf("snapshot_interval_seconds must be > 0")
	}
	if c.MetricsPort <= 0 {
		return fmt.Errorf("metrics_port must be > 0")
	}
	return nil
}
