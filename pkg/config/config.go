// Package config provides the unified configuration system for datafeed.
// It defines a single PipelineConfig structure used to wire a feeding
// pipeline from a YAML file, environment variables, or CLI flags.
//
// The configuration is organized into logical sections:
//   - CSV: input file, delimiter, and the columns to extract
//   - Batch: batch size for batch assembly
//   - Prefetch: buffer size for the background prefetch worker
//   - Shuffle: number of permutation passes applied at epoch rollover
//   - Logging: level and encoding for the structured logger
//
// Example usage:
//
//	cfg := config.NewPipelineConfig("training-feed")
//	cfg.Batch.Size = 64
//	cfg.Prefetch.BufferSize = 4096
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/datafeedio/datafeed/pkg/errors"
)

// PipelineConfig is the single configuration structure for a feeding pipeline.
type PipelineConfig struct {
	// Name identifies the pipeline instance
	Name string `yaml:"name" json:"name"`

	// CSV configures the CSV input source
	CSV CSVConfig `yaml:"csv" json:"csv"`

	// Batch configures batch assembly
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Prefetch configures the background prefetch worker
	Prefetch PrefetchConfig `yaml:"prefetch" json:"prefetch"`

	// Shuffle configures epoch-rollover shuffling
	Shuffle ShuffleConfig `yaml:"shuffle" json:"shuffle"`

	// Logging configures the structured logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CSVConfig contains CSV input settings.
type CSVConfig struct {
	// Path to the CSV file; files ending in .gz are decompressed transparently
	Path string `yaml:"path" json:"path"`
	// Delimiter is the field separator (single character, default comma)
	Delimiter string `yaml:"delimiter" json:"delimiter"`
	// Fields lists the header columns to extract, in output order
	Fields []string `yaml:"fields" json:"fields"`
}

// BatchConfig contains batch assembly settings.
type BatchConfig struct {
	// Size is the number of rows per batch; 0 passes rows through unbatched
	Size int `yaml:"size" json:"size"`
}

// PrefetchConfig contains prefetch worker settings.
type PrefetchConfig struct {
	// Enabled toggles the background prefetch layer
	Enabled bool `yaml:"enabled" json:"enabled"`
	// BufferSize is the handoff queue capacity and per-run fetch budget
	BufferSize int `yaml:"buffer_size" json:"buffer_size"`
}

// ShuffleConfig contains shuffle settings.
type ShuffleConfig struct {
	// Passes is the number of independent permutations applied per shuffle
	Passes int `yaml:"passes" json:"passes"`
	// Seed fixes the permutation sequence when non-zero (0 = time-seeded)
	Seed int64 `yaml:"seed" json:"seed"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Encoding selects the log output format (json or console)
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables colored console output and error stacktraces
	Development bool `yaml:"development" json:"development"`
}

// NewPipelineConfig creates a configuration with sensible defaults.
func NewPipelineConfig(name string) *PipelineConfig {
	return &PipelineConfig{
		Name: name,
		CSV: CSVConfig{
			Delimiter: ",",
		},
		Batch: BatchConfig{
			Size: 32,
		},
		Prefetch: PrefetchConfig{
			Enabled:    true,
			BufferSize: 10000,
		},
		Shuffle: ShuffleConfig{
			Passes: 3,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "pipeline name is required")
	}
	if len(c.CSV.Delimiter) > 1 {
		return errors.Newf(errors.ErrorTypeConfig,
			"delimiter must be a single character, got %q", c.CSV.Delimiter)
	}
	if c.Batch.Size < 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"batch size must be >= 0, got %d", c.Batch.Size)
	}
	if c.Prefetch.Enabled && c.Prefetch.BufferSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"prefetch buffer size must be positive, got %d", c.Prefetch.BufferSize)
	}
	if c.Shuffle.Passes <= 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"shuffle passes must be positive, got %d", c.Shuffle.Passes)
	}
	return nil
}

// DelimiterRune returns the configured delimiter as a rune, defaulting to comma.
func (c *CSVConfig) DelimiterRune() rune {
	if c.Delimiter == "" {
		return ','
	}
	return rune(c.Delimiter[0])
}
