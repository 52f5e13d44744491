// Package config loads canalview settings from YAML.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/philipparndt/canalview/internal/chart"
	"github.com/philipparndt/canalview/internal/scene"
	"github.com/philipparndt/canalview/internal/service"
	"github.com/philipparndt/canalview/pkg/geometry"
)

// Config holds the full canalview configuration.
type Config struct {
	Endpoint      string        `yaml:"endpoint"`
	TargetSize    float64       `yaml:"target_size"`
	FPS           int           `yaml:"fps"`
	Viewport      SizeConfig    `yaml:"viewport"`
	Chart         SizeConfig    `yaml:"chart"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	LogLevel      string        `yaml:"log_level"` // debug | info | warn | error
}

// SizeConfig is a pixel size.
type SizeConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:      service.DefaultEndpoint,
		TargetSize:    geometry.DefaultTargetSize,
		FPS:           30,
		Viewport:      SizeConfig{Width: 480, Height: 360},
		Chart:         SizeConfig{Width: 800, Height: 320},
		WatchDebounce: 500 * time.Millisecond,
		LogLevel:      "info",
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	if c.TargetSize <= 0 {
		return fmt.Errorf("target_size must be > 0")
	}
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("fps must be between 1 and 240")
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return fmt.Errorf("viewport width and height must be > 0")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart width and height must be > 0")
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("watch_debounce must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", level)
	}
}

// ViewportOptions returns the scene options for a preview viewport.
func (c *Config) ViewportOptions() scene.Options {
	opts := scene.DefaultOptions()
	opts.TargetSize = c.TargetSize
	opts.FPS = c.FPS
	return opts
}

// ChartOptions returns the rendered chart size.
func (c *Config) ChartOptions() chart.Options {
	return chart.Options{Width: c.Chart.Width, Height: c.Chart.Height}
}
