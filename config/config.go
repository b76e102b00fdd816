// Package config loads engine settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-anim/engine/curve"
	"gopkg.in/yaml.v3"
)

// SpringConfig holds the default spring parameters used when a registration leaves them unset.
type SpringConfig struct {
	Stiffness float32 `yaml:"stiffness"`
	Damping   float32 `yaml:"damping"`
	Threshold float32 `yaml:"threshold"`
}

// TweenConfig holds the default tween parameters.
type TweenConfig struct {
	// Duration is in seconds.
	Duration float32 `yaml:"duration"`
	// Curve is a named curve ("linear", "ease", "elastic", "bounce") or "family/direction", e.g. "cubic/easeOut".
	Curve string `yaml:"curve"`
}

// Config is the complete engine configuration.
type Config struct {
	// TickRate is the frame rate of the built-in tick source, in ticks per second.
	TickRate float64 `yaml:"tickRate"`
	// InitialCapacity is the number of slots each slab allocates up front.
	InitialCapacity int `yaml:"initialCapacity"`
	// CompositionCap is the number of live tweens a property may compose before its chain is cancelled.
	CompositionCap int `yaml:"compositionCap"`

	// ForceHost skips the accelerator and runs every job on the host.
	ForceHost bool `yaml:"forceHost"`
	// ForceFallbackAdapter requests the software WebGPU adapter.
	ForceFallbackAdapter bool `yaml:"forceFallbackAdapter"`
	// HostWorkers is the size of the host worker pool, 0 for GOMAXPROCS.
	HostWorkers int `yaml:"hostWorkers"`
	// ChunkSize is the number of slots one host task integrates.
	ChunkSize int `yaml:"chunkSize"`

	Profiling       bool          `yaml:"profiling"`
	ProfileInterval time.Duration `yaml:"profileInterval"`

	// BezierEpsilon is the x tolerance used when solving UnitBezier timing curves.
	BezierEpsilon float32 `yaml:"bezierEpsilon"`

	Spring SpringConfig `yaml:"spring"`
	Tween  TweenConfig  `yaml:"tween"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		TickRate:        60,
		InitialCapacity: 2,
		CompositionCap:  5,
		ChunkSize:       256,
		ProfileInterval: time.Second,
		BezierEpsilon:   1e-6,
		Spring: SpringConfig{
			Stiffness: 200,
			Damping:   10,
			Threshold: 0.01,
		},
		Tween: TweenConfig{
			Duration: 0.3,
			Curve:    "ease",
		},
	}
}

// Load reads, parses and validates a YAML configuration file. Fields missing from the file keep
// their default values.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - *Config: the loaded configuration
//   - error: an error if the file cannot be read, parsed or validated
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses and validates YAML configuration data on top of the defaults.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Config: the parsed configuration
//   - error: an error if the data cannot be parsed or validated
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field is within its valid range.
//
// Returns:
//   - error: the first invalid field, nil if the configuration is valid
func (c *Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tickRate must be positive, got %v", c.TickRate)
	}
	if c.InitialCapacity < 1 {
		return fmt.Errorf("initialCapacity must be at least 1, got %d", c.InitialCapacity)
	}
	if c.CompositionCap < 1 {
		return fmt.Errorf("compositionCap must be at least 1, got %d", c.CompositionCap)
	}
	if c.HostWorkers < 0 {
		return fmt.Errorf("hostWorkers cannot be negative, got %d", c.HostWorkers)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunkSize must be at least 1, got %d", c.ChunkSize)
	}
	if c.ProfileInterval <= 0 {
		return fmt.Errorf("profileInterval must be positive, got %v", c.ProfileInterval)
	}
	if c.BezierEpsilon <= 0 {
		return fmt.Errorf("bezierEpsilon must be positive, got %v", c.BezierEpsilon)
	}
	if c.Spring.Stiffness <= 0 || c.Spring.Damping <= 0 || c.Spring.Threshold <= 0 {
		return errors.New("spring stiffness, damping and threshold must be positive")
	}
	if c.Tween.Duration < 0 {
		return fmt.Errorf("tween duration cannot be negative, got %v", c.Tween.Duration)
	}
	if _, err := curve.Parse(c.Tween.Curve); err != nil {
		return fmt.Errorf("tween curve: %w", err)
	}
	return nil
}

// TweenCurve returns the parsed default tween curve, falling back to curve.Ease if it does not parse.
//
// Returns:
//   - curve.Curve: the default curve
func (c *Config) TweenCurve() curve.Curve {
	parsed, err := curve.Parse(c.Tween.Curve)
	if err != nil {
		return curve.Ease
	}
	return parsed
}
