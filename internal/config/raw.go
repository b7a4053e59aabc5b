package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// Raw types mirror Config with pointers so an included file only overrides
// the keys it sets.

type RawLogConfig struct {
	Level         *string `yaml:"level"`
	Format        *string `yaml:"format"`
	DebugProtocol *bool   `yaml:"debug_protocol"`
}

type RawMetricsConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Listen  *string `yaml:"listen"`
}

type RawPlayConfig struct {
	Width   *int    `yaml:"width"`
	Height  *int    `yaml:"height"`
	Format  *string `yaml:"format"`
	Buffers *int    `yaml:"buffers"`
	Frames  *int    `yaml:"frames"`
	FPS     *int    `yaml:"fps"`
	Pattern *string `yaml:"pattern"`
}

type RawConfig struct {
	Include          IncludeList       `yaml:"include"`
	Display          *string           `yaml:"display"`
	Title            *string           `yaml:"title"`
	AppID            *string           `yaml:"app_id"`
	RoundtripTimeout *Duration         `yaml:"roundtrip_timeout"`
	MaxFormats       *int              `yaml:"max_formats"`
	StrictFormats    *bool             `yaml:"strict_formats"`
	Log              *RawLogConfig     `yaml:"log"`
	Metrics          *RawMetricsConfig `yaml:"metrics"`
	Play             *RawPlayConfig    `yaml:"play"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c
	out.Include = nil

	if overlay.Display != nil {
		out.Display = overlay.Display
	}
	if overlay.Title != nil {
		out.Title = overlay.Title
	}
	if overlay.AppID != nil {
		out.AppID = overlay.AppID
	}
	if overlay.RoundtripTimeout != nil {
		out.RoundtripTimeout = overlay.RoundtripTimeout
	}
	if overlay.MaxFormats != nil {
		out.MaxFormats = overlay.MaxFormats
	}
	if overlay.StrictFormats != nil {
		out.StrictFormats = overlay.StrictFormats
	}
	if overlay.Log != nil {
		merged := mergeRawLog(derefOr(out.Log), *overlay.Log)
		out.Log = &merged
	}
	if overlay.Metrics != nil {
		merged := mergeRawMetrics(derefOr(out.Metrics), *overlay.Metrics)
		out.Metrics = &merged
	}
	if overlay.Play != nil {
		merged := mergeRawPlay(derefOr(out.Play), *overlay.Play)
		out.Play = &merged
	}
	return out
}

func derefOr[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

func mergeRawLog(base RawLogConfig, overlay RawLogConfig) RawLogConfig {
	out := base
	if overlay.Level != nil {
		out.Level = overlay.Level
	}
	if overlay.Format != nil {
		out.Format = overlay.Format
	}
	if overlay.DebugProtocol != nil {
		out.DebugProtocol = overlay.DebugProtocol
	}
	return out
}

func mergeRawMetrics(base RawMetricsConfig, overlay RawMetricsConfig) RawMetricsConfig {
	out := base
	if overlay.Enabled != nil {
		out.Enabled = overlay.Enabled
	}
	if overlay.Listen != nil {
		out.Listen = overlay.Listen
	}
	return out
}

func mergeRawPlay(base RawPlayConfig, overlay RawPlayConfig) RawPlayConfig {
	out := base
	if overlay.Width != nil {
		out.Width = overlay.Width
	}
	if overlay.Height != nil {
		out.Height = overlay.Height
	}
	if overlay.Format != nil {
		out.Format = overlay.Format
	}
	if overlay.Buffers != nil {
		out.Buffers = overlay.Buffers
	}
	if overlay.Frames != nil {
		out.Frames = overlay.Frames
	}
	if overlay.FPS != nil {
		out.FPS = overlay.FPS
	}
	if overlay.Pattern != nil {
		out.Pattern = overlay.Pattern
	}
	return out
}
