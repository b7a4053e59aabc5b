package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig applies raw on top of DefaultConfig.
func BuildEffectiveConfig(raw RawConfig) (*Config, error) {
	cfg := DefaultConfig()

	if raw.Display != nil {
		cfg.Display = strings.TrimSpace(*raw.Display)
	}
	if raw.Title != nil {
		cfg.Title = *raw.Title
	}
	if raw.AppID != nil {
		cfg.AppID = *raw.AppID
	}
	if raw.RoundtripTimeout != nil {
		cfg.RoundtripTimeout = *raw.RoundtripTimeout
	}
	if raw.MaxFormats != nil {
		cfg.MaxFormats = *raw.MaxFormats
	}
	if raw.StrictFormats != nil {
		cfg.StrictFormats = *raw.StrictFormats
	}

	if raw.Log != nil {
		if raw.Log.Level != nil {
			level := strings.ToLower(strings.TrimSpace(*raw.Log.Level))
			if level == "warning" {
				level = "warn"
			}
			cfg.Log.Level = level
		}
		if raw.Log.Format != nil {
			cfg.Log.Format = strings.ToLower(strings.TrimSpace(*raw.Log.Format))
		}
		cfg.Log.DebugProtocol = derefBool(raw.Log.DebugProtocol, cfg.Log.DebugProtocol)
	}

	if raw.Metrics != nil {
		cfg.Metrics.Enabled = derefBool(raw.Metrics.Enabled, cfg.Metrics.Enabled)
		if raw.Metrics.Listen != nil {
			cfg.Metrics.Listen = strings.TrimSpace(*raw.Metrics.Listen)
		}
	}

	if raw.Play != nil {
		p := raw.Play
		cfg.Play.Width = derefInt(p.Width, cfg.Play.Width)
		cfg.Play.Height = derefInt(p.Height, cfg.Play.Height)
		cfg.Play.Buffers = derefInt(p.Buffers, cfg.Play.Buffers)
		cfg.Play.Frames = derefInt(p.Frames, cfg.Play.Frames)
		cfg.Play.FPS = derefInt(p.FPS, cfg.Play.FPS)
		if p.Format != nil {
			cfg.Play.Format = strings.TrimSpace(*p.Format)
		}
		if p.Pattern != nil {
			cfg.Play.Pattern = strings.ToLower(strings.TrimSpace(*p.Pattern))
		}
	}

	return cfg, nil
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
