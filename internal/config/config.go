package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/wlpresent/internal/present"
)

const (
	DefaultRoundtripTimeout = 5 * time.Second
	DefaultMetricsListen    = "127.0.0.1:9464"

	DefaultPlayWidth   = 1280
	DefaultPlayHeight  = 720
	DefaultPlayBuffers = 3
	DefaultPlayFrames  = 300
	DefaultPlayFPS     = 60
	DefaultPlayPattern = "bars"

	MinPlayBuffers = 2
	MaxPlayBuffers = 16
	MaxPlayFPS     = 240
	// MaxPlayDimension bounds play.width and play.height. At 4 bytes per
	// pixel a row stays well inside the 32-bit stride the protocol carries.
	MaxPlayDimension = 16384
	MaxFormats       = 1024
)

// Duration is a time.Duration written as a Go duration string ("5s") in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string like \"5s\"", value.Line)
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is auto, text or json. Auto picks text on a terminal.
	Format        string `yaml:"format"`
	DebugProtocol bool   `yaml:"debug_protocol"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// PlayConfig drives the built-in test pattern producer.
type PlayConfig struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Format  string `yaml:"format"`
	Buffers int    `yaml:"buffers"`
	// Frames is the number of frames to show; 0 runs until the window closes.
	Frames  int    `yaml:"frames"`
	FPS     int    `yaml:"fps"`
	Pattern string `yaml:"pattern"`
}

// Config is the effective configuration after defaults, includes and
// validation.
type Config struct {
	Display          string        `yaml:"display"`
	Title            string        `yaml:"title"`
	AppID            string        `yaml:"app_id"`
	RoundtripTimeout Duration      `yaml:"roundtrip_timeout"`
	MaxFormats       int           `yaml:"max_formats"`
	StrictFormats    bool          `yaml:"strict_formats"`
	Log              LogConfig     `yaml:"log"`
	Metrics          MetricsConfig `yaml:"metrics"`
	Play             PlayConfig    `yaml:"play"`
}

func DefaultConfig() *Config {
	return &Config{
		Title:            present.DefaultTitle,
		AppID:            present.DefaultAppID,
		RoundtripTimeout: Duration(DefaultRoundtripTimeout),
		MaxFormats:       present.DefaultFormatCapacity,
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Metrics: MetricsConfig{
			Listen: DefaultMetricsListen,
		},
		Play: PlayConfig{
			Width:   DefaultPlayWidth,
			Height:  DefaultPlayHeight,
			Format:  "XRGB8888",
			Buffers: DefaultPlayBuffers,
			Frames:  DefaultPlayFrames,
			FPS:     DefaultPlayFPS,
			Pattern: DefaultPlayPattern,
		},
	}
}

// SessionOptions maps the config onto presenter options. Logger and metrics
// are wired by the caller.
func (c *Config) SessionOptions() present.Options {
	return present.Options{
		Display:          c.Display,
		Title:            c.Title,
		AppID:            c.AppID,
		RoundtripTimeout: time.Duration(c.RoundtripTimeout),
		MaxFormats:       c.MaxFormats,
		StrictFormats:    c.StrictFormats,
		DebugProtocol:    c.Log.DebugProtocol,
	}
}

// PlayFormat parses play.format.
func (c *Config) PlayFormat() (present.Format, error) {
	return present.ParseFormat(c.Play.Format)
}

// Validate performs strict validation of the effective configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return &ValidationError{Path: "title", Err: fmt.Errorf("title must not be empty")}
	}
	if c.RoundtripTimeout < 0 {
		return &ValidationError{Path: "roundtrip_timeout", Err: fmt.Errorf("roundtrip_timeout must be >= 0")}
	}
	if c.MaxFormats < 1 || c.MaxFormats > MaxFormats {
		return &ValidationError{Path: "max_formats", Err: fmt.Errorf("max_formats must be between 1 and %d", MaxFormats)}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "log.level", Err: fmt.Errorf("log.level must be one of: debug, info, warn, error")}
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return &ValidationError{Path: "log.format", Err: fmt.Errorf("log.format must be one of: auto, text, json")}
	}
	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			return &ValidationError{Path: "metrics.listen", Err: fmt.Errorf("metrics.listen must be host:port: %w", err)}
		}
	}
	return c.Play.Validate()
}

// Validate checks the play section on its own, for callers that override
// fields after the file was loaded.
func (p PlayConfig) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return &ValidationError{Path: "play.width", Err: fmt.Errorf("play size must be positive, got %dx%d", p.Width, p.Height)}
	}
	if p.Width > MaxPlayDimension {
		return &ValidationError{Path: "play.width", Err: fmt.Errorf("play.width must be at most %d", MaxPlayDimension)}
	}
	if p.Height > MaxPlayDimension {
		return &ValidationError{Path: "play.height", Err: fmt.Errorf("play.height must be at most %d", MaxPlayDimension)}
	}
	if _, err := present.ParseFormat(p.Format); err != nil {
		return &ValidationError{Path: "play.format", Err: err}
	}
	if p.Buffers < MinPlayBuffers || p.Buffers > MaxPlayBuffers {
		return &ValidationError{Path: "play.buffers", Err: fmt.Errorf("play.buffers must be between %d and %d", MinPlayBuffers, MaxPlayBuffers)}
	}
	if p.Frames < 0 {
		return &ValidationError{Path: "play.frames", Err: fmt.Errorf("play.frames must be >= 0")}
	}
	if p.FPS < 1 || p.FPS > MaxPlayFPS {
		return &ValidationError{Path: "play.fps", Err: fmt.Errorf("play.fps must be between 1 and %d", MaxPlayFPS)}
	}
	switch p.Pattern {
	case "bars", "gradient", "solid":
	default:
		return &ValidationError{Path: "play.pattern", Err: fmt.Errorf("play.pattern must be one of: bars, gradient, solid")}
	}
	return nil
}

// Save writes the configuration to path, creating parent directories.
//
// Note: this marshals the effective config and will not preserve comments or
// include structure from the original YAML.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
