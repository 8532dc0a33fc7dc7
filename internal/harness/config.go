// Package harness holds the configuration and wiring for the segbuf demo
// CLI (cmd/segbufdemo). It is an external collaborator of the core
// dispatcher, not part of the library surface.
package harness

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the demo harness's configuration.
type Config struct {
	// LogLevel is the minimum level the demo's logger emits.
	LogLevel zapcore.Level `yaml:"log_level"`
	// PruneInterval is the dispatcher's background pruner period.
	PruneInterval time.Duration `yaml:"prune_interval"`
	// DefaultCapacity is the slot count for on-demand segments.
	DefaultCapacity int `yaml:"default_capacity"`
	// WriteCount is how many items the demo producer writes before exiting.
	WriteCount int `yaml:"write_count"`
}

// DefaultConfig returns the harness's default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        zapcore.InfoLevel,
		PruneInterval:   2000 * time.Millisecond,
		DefaultCapacity: 1024,
		WriteCount:      10035,
	}
}

// LoadConfig loads configuration from a YAML file at path, falling back to
// DefaultConfig for anything the file doesn't set.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}
	return cfg, nil
}
