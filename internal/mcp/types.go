package mcp

// ProbeDisplayInput is the input for the probe_display tool.
type ProbeDisplayInput struct {
	Display string `json:"display,omitempty" jsonschema:"Wayland display name or socket path (default: WAYLAND_DISPLAY, then the configured display)"`
}

// GlobalInfo describes one advertised compositor global.
type GlobalInfo struct {
	Name      uint32 `json:"name"`
	Interface string `json:"interface"`
	Version   uint32 `json:"version"`
}

// FormatInfo is one dmabuf pixel format.
type FormatInfo struct {
	FourCC string `json:"fourcc"`
	Code   string `json:"code"`
}

// ProbeDisplayOutput is the output for the probe_display tool.
type ProbeDisplayOutput struct {
	Display string `json:"display"`
	// Ready is false when a required global is missing; Missing lists them.
	Ready          bool         `json:"ready"`
	Missing        []string     `json:"missing,omitempty"`
	Viewporter     bool         `json:"viewporter"`
	Globals        []GlobalInfo `json:"globals,omitempty"`
	Formats        []FormatInfo `json:"formats,omitempty"`
	FormatOverflow string       `json:"format_overflow,omitempty"`
}

// CheckFormatInput is the input for the check_format tool.
type CheckFormatInput struct {
	Format  string `json:"format" jsonschema:"required,Pixel format as a fourcc (XR24), a name (XRGB8888) or hex (0x34325258)"`
	Display string `json:"display,omitempty" jsonschema:"Wayland display name or socket path"`
}

// CheckFormatOutput is the output for the check_format tool.
type CheckFormatOutput struct {
	Format    FormatInfo `json:"format"`
	Supported bool       `json:"supported"`
}

// PlayPatternInput is the input for the play_pattern tool.
type PlayPatternInput struct {
	Pattern string `json:"pattern,omitempty" jsonschema:"Test pattern: bars, gradient or solid (default from config)"`
	Frames  int    `json:"frames,omitempty" jsonschema:"Frames to show (default from config, capped at 3600)"`
	Width   int32  `json:"width,omitempty" jsonschema:"Buffer width in pixels"`
	Height  int32  `json:"height,omitempty" jsonschema:"Buffer height in pixels"`
	Format  string `json:"format,omitempty" jsonschema:"Pixel format (default from config)"`
	FPS     int    `json:"fps,omitempty" jsonschema:"Frames per second (default from config)"`
	Display string `json:"display,omitempty" jsonschema:"Wayland display name or socket path"`
}

// PlayPatternOutput is the output for the play_pattern tool.
type PlayPatternOutput struct {
	Shown     int     `json:"shown"`
	Released  int     `json:"released"`
	ElapsedMS int64   `json:"elapsed_ms"`
	ActualFPS float64 `json:"actual_fps"`
	// WindowClosed is set when the compositor closed the window early.
	WindowClosed bool `json:"window_closed"`
}
