// Package config provides configuration loading and management for mcmlview.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mcmlview/pkg/histogram"
	"mcmlview/pkg/render"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// Dataset source
	Dataset struct {
		// Path is the dataset file; a .zst file or zstd stream is decompressed
		Path string `yaml:"path"`

		// ByteOrder is "little" or "big"
		ByteOrder string `yaml:"byteOrder"`
	} `yaml:"dataset"`

	// Output view parameters
	View struct {
		// Width and Height are the frame size in pixels
		Width  int `yaml:"width"`
		Height int `yaml:"height"`

		// Filter is the resampling filter: nearest, approx-bilinear, bilinear or catmull-rom
		Filter string `yaml:"filter"`
	} `yaml:"view"`

	// Render loop and initial threshold window
	Render struct {
		// Interval is the viewer poll period
		Interval time.Duration `yaml:"interval"`

		Lower float64 `yaml:"lower"`
		Upper float64 `yaml:"upper"`

		// AutoBounds derives the initial window from the 2% and 98% quantiles
		// of the first plane
		AutoBounds bool `yaml:"autoBounds"`
	} `yaml:"render"`

	// Histogram parameters
	Histogram struct {
		Buckets int `yaml:"buckets"`

		// Layer is reported by gist requests that name none
		Layer int `yaml:"layer"`
	} `yaml:"histogram"`

	// HTTP transport
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// LogFormat is "text" or "json"
		LogFormat string `yaml:"logFormat"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default dataset parameters
	cfg.Dataset.ByteOrder = "little"

	// Set default view and render parameters
	cfg.View.Width = 800
	cfg.View.Height = 800
	cfg.View.Filter = string(render.FilterNearest)

	cfg.Render.Interval = 16 * time.Millisecond
	cfg.Render.Lower = 0
	cfg.Render.Upper = 1

	// Histogram of the second layer
	cfg.Histogram.Buckets = histogram.DefaultBuckets
	cfg.Histogram.Layer = 1

	cfg.Server.Address = "localhost:8080"

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.LogFormat = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Fall back to defaults when there is no config file
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML over the defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the engine fail later.
func (c *Config) Validate() error {
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("%w: view size %dx%d", ErrInvalidConfig, c.View.Width, c.View.Height)
	}
	if !render.Filter(c.View.Filter).Valid() {
		return fmt.Errorf("%w: unknown filter %q", ErrInvalidConfig, c.View.Filter)
	}
	if c.Histogram.Buckets < 1 {
		return fmt.Errorf("%w: histogram buckets %d", ErrInvalidConfig, c.Histogram.Buckets)
	}
	if _, err := c.ByteOrder(); err != nil {
		return err
	}
	switch strings.ToLower(c.Output.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Output.LogFormat)
	}
	if c.Render.Interval < 0 {
		return fmt.Errorf("%w: negative render interval", ErrInvalidConfig)
	}
	return nil
}

// ByteOrder returns the dataset byte order.
func (c *Config) ByteOrder() (binary.ByteOrder, error) {
	switch strings.ToLower(c.Dataset.ByteOrder) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: unknown byte order %q", ErrInvalidConfig, c.Dataset.ByteOrder)
}

// EngineOptions converts the view, render and histogram sections.
func (c *Config) EngineOptions() render.Options {
	opts := render.DefaultOptions()
	opts.ViewWidth = c.View.Width
	opts.ViewHeight = c.View.Height
	opts.Filter = render.Filter(c.View.Filter)
	opts.GistLayer = c.Histogram.Layer
	opts.GistBuckets = c.Histogram.Buckets

	// The window starts at render.lower/upper; autoBounds may replace it later
	initial := render.DefaultState()
	initial.Lower = float32(c.Render.Lower)
	initial.Upper = float32(c.Render.Upper)
	opts.Initial = &initial
	return opts
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if needed
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
