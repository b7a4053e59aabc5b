package config

import (
	"fmt"
	"time"
)

// Explain returns the effective value at the given YAML path and the file
// position that set it, or SourceDefault.
//
// Supported paths:
//
//	display
//	title
//	app_id
//	roundtrip_timeout
//	max_formats
//	strict_formats
//	log.level | log.format | log.debug_protocol
//	metrics.enabled | metrics.listen
//	play.width | play.height | play.format | play.buffers
//	play.frames | play.fps | play.pattern
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}
	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}
	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	switch path {
	case "display":
		return cfg.Display, nil
	case "title":
		return cfg.Title, nil
	case "app_id":
		return cfg.AppID, nil
	case "roundtrip_timeout":
		return time.Duration(cfg.RoundtripTimeout).String(), nil
	case "max_formats":
		return cfg.MaxFormats, nil
	case "strict_formats":
		return cfg.StrictFormats, nil
	case "log.level":
		return cfg.Log.Level, nil
	case "log.format":
		return cfg.Log.Format, nil
	case "log.debug_protocol":
		return cfg.Log.DebugProtocol, nil
	case "metrics.enabled":
		return cfg.Metrics.Enabled, nil
	case "metrics.listen":
		return cfg.Metrics.Listen, nil
	case "play.width":
		return cfg.Play.Width, nil
	case "play.height":
		return cfg.Play.Height, nil
	case "play.format":
		return cfg.Play.Format, nil
	case "play.buffers":
		return cfg.Play.Buffers, nil
	case "play.frames":
		return cfg.Play.Frames, nil
	case "play.fps":
		return cfg.Play.FPS, nil
	case "play.pattern":
		return cfg.Play.Pattern, nil
	}
	return nil, fmt.Errorf("unknown path: %s", path)
}
