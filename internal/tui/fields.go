package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/1broseidon/wlpresent/internal/config"
)

// field is one editable config value, addressed by its YAML path.
type field struct {
	path    string
	title   string
	desc    string
	options []string
	get     func(*config.Config) string
	set     func(*config.Config, string) error
}

func stringField(path, title, desc string, ptr func(*config.Config) *string) field {
	return field{
		path:  path,
		title: title,
		desc:  desc,
		get:   func(c *config.Config) string { return *ptr(c) },
		set: func(c *config.Config, v string) error {
			*ptr(c) = strings.TrimSpace(v)
			return nil
		},
	}
}

func intField(path, title, desc string, ptr func(*config.Config) *int) field {
	return field{
		path:  path,
		title: title,
		desc:  desc,
		get:   func(c *config.Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: not a number", path)
			}
			*ptr(c) = n
			return nil
		},
	}
}

func boolField(path, title, desc string, ptr func(*config.Config) *bool) field {
	return field{
		path:    path,
		title:   title,
		desc:    desc,
		options: []string{"false", "true"},
		get:     func(c *config.Config) string { return strconv.FormatBool(*ptr(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			*ptr(c) = b
			return nil
		},
	}
}

func choiceField(path, title, desc string, options []string, ptr func(*config.Config) *string) field {
	f := stringField(path, title, desc, ptr)
	f.options = options
	return f
}

func sessionFields() []field {
	return []field{
		stringField("display", "Display", "Wayland socket name or path; empty uses $WAYLAND_DISPLAY",
			func(c *config.Config) *string { return &c.Display }),
		stringField("title", "Window Title", "Toplevel title shown by the compositor",
			func(c *config.Config) *string { return &c.Title }),
		stringField("app_id", "App ID", "Toplevel app_id used for window rules",
			func(c *config.Config) *string { return &c.AppID }),
		{
			path:  "roundtrip_timeout",
			title: "Roundtrip Timeout",
			desc:  "How long to wait for the compositor, e.g. 5s or 750ms",
			get:   func(c *config.Config) string { return time.Duration(c.RoundtripTimeout).String() },
			set: func(c *config.Config, v string) error {
				d, err := time.ParseDuration(strings.TrimSpace(v))
				if err != nil {
					return fmt.Errorf("roundtrip_timeout: %w", err)
				}
				c.RoundtripTimeout = config.Duration(d)
				return nil
			},
		},
		intField("max_formats", "Max Formats", "Capacity of the advertised format set",
			func(c *config.Config) *int { return &c.MaxFormats }),
		boolField("strict_formats", "Strict Formats", "Refuse buffers in formats the compositor did not advertise",
			func(c *config.Config) *bool { return &c.StrictFormats }),
	}
}

func loggingFields() []field {
	return []field{
		choiceField("log.level", "Log Level", "Minimum level written to stderr",
			[]string{"debug", "info", "warn", "error"},
			func(c *config.Config) *string { return &c.Log.Level }),
		choiceField("log.format", "Log Format", "auto is text on a terminal, JSON otherwise",
			[]string{"auto", "text", "json"},
			func(c *config.Config) *string { return &c.Log.Format }),
		boolField("log.debug_protocol", "Protocol Trace", "Log every Wayland request and event at debug level",
			func(c *config.Config) *bool { return &c.Log.DebugProtocol }),
		boolField("metrics.enabled", "Metrics", "Serve Prometheus metrics while playing",
			func(c *config.Config) *bool { return &c.Metrics.Enabled }),
		stringField("metrics.listen", "Metrics Address", "host:port for the /metrics endpoint",
			func(c *config.Config) *string { return &c.Metrics.Listen }),
	}
}

func playFields() []field {
	return []field{
		intField("play.width", "Width", "Buffer width in pixels",
			func(c *config.Config) *int { return &c.Play.Width }),
		intField("play.height", "Height", "Buffer height in pixels",
			func(c *config.Config) *int { return &c.Play.Height }),
		choiceField("play.format", "Format", "Pixel format of the test buffers",
			[]string{"XRGB8888", "ARGB8888", "XBGR8888", "ABGR8888", "RGB565"},
			func(c *config.Config) *string { return &c.Play.Format }),
		intField("play.buffers", "Buffers", "Buffers cycled through the window",
			func(c *config.Config) *int { return &c.Play.Buffers }),
		intField("play.frames", "Frames", "Frames per run; 0 plays until the window closes",
			func(c *config.Config) *int { return &c.Play.Frames }),
		intField("play.fps", "FPS", "Presentation rate",
			func(c *config.Config) *int { return &c.Play.FPS }),
		choiceField("play.pattern", "Pattern", "Test pattern painted into each frame",
			[]string{"bars", "gradient", "solid"},
			func(c *config.Config) *string { return &c.Play.Pattern }),
	}
}

// applyFields writes values into a copy of cfg and validates the result; cfg
// is only updated when the whole set is valid.
func applyFields(cfg *config.Config, fields []field, values []string) error {
	next := cloneConfig(cfg)
	if next == nil {
		return fmt.Errorf("config could not be copied")
	}
	for i, f := range fields {
		if err := f.set(next, values[i]); err != nil {
			return err
		}
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = *next
	return nil
}
