// Package config loads solver settings from defaults, an optional
// .aswin/config.yaml and ASWIN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/corey/aswin/internal/logging"
)

// Config is the complete aswin configuration.
type Config struct {
	Explore   ExploreConfig   `mapstructure:"explore"`
	Reveal    RevealConfig    `mapstructure:"reveal"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// ExploreConfig bounds belief-support exploration.
type ExploreConfig struct {
	// MaxNodes aborts exploration once more belief supports are discovered (0 = unlimited)
	MaxNodes int `mapstructure:"max_nodes"`
	// Timeout aborts exploration after this wall time (0 = none)
	Timeout time.Duration `mapstructure:"timeout"`
	// Workers expands each BFS layer with this many goroutines
	Workers int `mapstructure:"workers"`
}

// RevealConfig controls the strongly-revealing check.
type RevealConfig struct {
	// Lookahead bounds the depth of supports inspected (0 = until fixpoint)
	Lookahead int `mapstructure:"lookahead"`
}

// LoggingConfig controls the run log.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// TelemetryConfig controls tracing and metrics export.
type TelemetryConfig struct {
	// Trace selects the span exporter: "none" or "stdout"
	Trace string `mapstructure:"trace"`
	// MetricsFile, when set, receives a Prometheus text dump after each command
	MetricsFile string `mapstructure:"metrics_file"`
}

// StorageConfig controls run persistence.
type StorageConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Explore:   ExploreConfig{MaxNodes: 200000, Workers: 1},
		Reveal:    RevealConfig{Lookahead: 0},
		Logging:   LoggingConfig{Level: logging.LevelInfo},
		Telemetry: TelemetryConfig{Trace: "none"},
		Storage:   StorageConfig{Enabled: true},
	}
}

// File returns the config file path under the data directory.
func File(dataDir string) string {
	return filepath.Join(dataDir, "config.yaml")
}

// New returns a viper instance with defaults, env binding and, when present,
// the config file under dataDir.
func New(dataDir string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("ASWIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := File(dataDir)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("explore.max_nodes", d.Explore.MaxNodes)
	v.SetDefault("explore.timeout", d.Explore.Timeout)
	v.SetDefault("explore.workers", d.Explore.Workers)

	v.SetDefault("reveal.lookahead", d.Reveal.Lookahead)

	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("telemetry.trace", d.Telemetry.Trace)
	v.SetDefault("telemetry.metrics_file", d.Telemetry.MetricsFile)

	v.SetDefault("storage.enabled", d.Storage.Enabled)
}

// Load builds the configuration for dataDir and validates it.
func Load(dataDir string) (*Config, error) {
	v, err := New(dataDir)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates a populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects negative budgets and unknown enum values.
func (c *Config) Validate() error {
	var errs []error
	if c.Explore.MaxNodes < 0 {
		errs = append(errs, fmt.Errorf("explore.max_nodes must be >= 0, got %d", c.Explore.MaxNodes))
	}
	if c.Explore.Timeout < 0 {
		errs = append(errs, fmt.Errorf("explore.timeout must be >= 0, got %s", c.Explore.Timeout))
	}
	if c.Explore.Workers < 1 {
		errs = append(errs, fmt.Errorf("explore.workers must be >= 1, got %d", c.Explore.Workers))
	}
	if c.Reveal.Lookahead < 0 {
		errs = append(errs, fmt.Errorf("reveal.lookahead must be >= 0, got %d", c.Reveal.Lookahead))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q is not one of DEBUG, INFO, WARN, ERROR", c.Logging.Level))
	}
	switch c.Telemetry.Trace {
	case "none", "stdout":
	default:
		errs = append(errs, fmt.Errorf("telemetry.trace %q is not one of none, stdout", c.Telemetry.Trace))
	}
	return errors.Join(errs...)
}

// Keys lists every recognised key in display order.
func Keys() []string {
	return []string{
		"explore.max_nodes", "explore.timeout", "explore.workers",
		"reveal.lookahead",
		"logging.level",
		"telemetry.trace", "telemetry.metrics_file",
		"storage.enabled",
	}
}
