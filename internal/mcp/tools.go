package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/present"
	"github.com/1broseidon/wlpresent/internal/producer"
	"github.com/1broseidon/wlpresent/internal/runtimepath"
)

func (s *Server) handleProbeDisplay(ctx context.Context, _ *mcpsdk.CallToolRequest, args ProbeDisplayInput) (*mcpsdk.CallToolResult, ProbeDisplayOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.sessionOptions(args.Display)
	out := ProbeDisplayOutput{Display: displayLabel(opts.Display)}

	session, err := s.connect(ctx, opts)
	if err != nil {
		var capErr *present.CapabilityError
		if errors.As(err, &capErr) {
			out.Missing = capErr.Missing
			s.log.Info("probe_display: compositor lacks required globals", "display", out.Display, "missing", capErr.Missing)
			return nil, out, nil
		}
		return nil, ProbeDisplayOutput{}, fmt.Errorf("connect to %s: %w", out.Display, err)
	}
	defer session.Destroy()

	out.Ready = true
	out.Viewporter = session.HasViewporter()
	for _, g := range session.Globals() {
		out.Globals = append(out.Globals, GlobalInfo{Name: g.Name, Interface: g.Interface, Version: g.Version})
	}
	for _, f := range session.Formats() {
		out.Formats = append(out.Formats, formatInfo(f))
	}
	if err := session.FormatOverflow(); err != nil {
		out.FormatOverflow = err.Error()
	}
	s.log.Debug("probe_display", "display", out.Display, "globals", len(out.Globals), "formats", len(out.Formats))
	return nil, out, nil
}

func (s *Server) handleCheckFormat(ctx context.Context, _ *mcpsdk.CallToolRequest, args CheckFormatInput) (*mcpsdk.CallToolResult, CheckFormatOutput, error) {
	format, err := present.ParseFormat(args.Format)
	if err != nil {
		return nil, CheckFormatOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.connect(ctx, s.sessionOptions(args.Display))
	if err != nil {
		return nil, CheckFormatOutput{}, err
	}
	defer session.Destroy()

	return nil, CheckFormatOutput{
		Format:    formatInfo(format),
		Supported: session.FormatSupported(format),
	}, nil
}

func (s *Server) handlePlayPattern(ctx context.Context, _ *mcpsdk.CallToolRequest, args PlayPatternInput) (*mcpsdk.CallToolResult, PlayPatternOutput, error) {
	opts, err := s.playOptions(args)
	if err != nil {
		return nil, PlayPatternOutput{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.connect(ctx, s.sessionOptions(args.Display))
	if err != nil {
		return nil, PlayPatternOutput{}, err
	}
	defer session.Destroy()

	player, err := producer.NewPlayer(ctx, session, s.allocator, opts)
	if err != nil {
		return nil, PlayPatternOutput{}, err
	}
	stats, runErr := player.Run(ctx)
	closeErr := player.Close()
	if runErr != nil {
		return nil, PlayPatternOutput{}, runErr
	}
	if closeErr != nil {
		s.log.Warn("play_pattern: teardown failed", "error", closeErr)
	}

	out := PlayPatternOutput{
		Shown:        stats.Shown,
		Released:     stats.Released,
		ElapsedMS:    stats.Elapsed.Milliseconds(),
		WindowClosed: stats.Shown < opts.Frames,
	}
	if secs := stats.Elapsed.Seconds(); secs > 0 {
		out.ActualFPS = float64(stats.Shown) / secs
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf("Showed %d frames (%d released) in %dms", out.Shown, out.Released, out.ElapsedMS)},
		},
	}, out, nil
}

// playOptions fills unset inputs from the play section of the config.
func (s *Server) playOptions(args PlayPatternInput) (producer.Options, error) {
	play := s.config.Play
	if args.Pattern != "" {
		play.Pattern = args.Pattern
	}
	if args.Format != "" {
		play.Format = args.Format
	}
	if args.Width > 0 {
		play.Width = int(args.Width)
	}
	if args.Height > 0 {
		play.Height = int(args.Height)
	}
	if args.FPS > 0 {
		play.FPS = args.FPS
	}
	frames := args.Frames
	if frames <= 0 {
		frames = play.Frames
	}
	if frames <= 0 {
		frames = config.DefaultPlayFrames
	}
	frames = min(frames, maxPlayFrames)
	if err := play.Validate(); err != nil {
		return producer.Options{}, err
	}

	pattern, err := producer.NewPattern(play.Pattern)
	if err != nil {
		return producer.Options{}, err
	}
	format, err := present.ParseFormat(play.Format)
	if err != nil {
		return producer.Options{}, err
	}
	return producer.Options{
		Width:   int32(play.Width),
		Height:  int32(play.Height),
		Format:  format,
		Buffers: play.Buffers,
		Frames:  frames,
		FPS:     play.FPS,
		Pattern: pattern,
		Logger:  s.log,
	}, nil
}

func formatInfo(f present.Format) FormatInfo {
	return FormatInfo{FourCC: f.String(), Code: fmt.Sprintf("0x%08x", uint32(f))}
}

func displayLabel(display string) string {
	path, err := runtimepath.WaylandSocket(display)
	if err != nil {
		return display
	}
	return path
}
