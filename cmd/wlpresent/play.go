package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/metrics"
	"github.com/1broseidon/wlpresent/internal/present"
	"github.com/1broseidon/wlpresent/internal/producer"
)

func runPlay(args []string) int {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/wlpresent/config.yaml)")
	display := fs.String("display", "", "Wayland display (default: config, then $WAYLAND_DISPLAY)")
	pattern := fs.String("pattern", "", "Test pattern: bars, gradient, solid (default: play.pattern)")
	format := fs.String("format", "", "Pixel format, e.g. XR24 or ARGB8888 (default: play.format)")
	width := fs.Int("width", 0, "Buffer width (default: play.width)")
	height := fs.Int("height", 0, "Buffer height (default: play.height)")
	frames := fs.Int("frames", -1, "Frames to show, 0 for until closed (default: play.frames)")
	fps := fs.Int("fps", 0, "Frames per second (default: play.fps)")
	buffers := fs.Int("buffers", 0, "Buffers in the pool (default: play.buffers)")
	memfd := fs.Bool("memfd", false, "Hand plain memfds to the compositor instead of udmabuf dmabufs")
	metricsAddr := fs.String("metrics", "", "Serve Prometheus metrics on this address (overrides metrics.listen)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wlpresent play [options]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Open a window and play a CPU-rendered pattern through imported dmabufs.")
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "play takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cfg := res.Config

	// Flags override the play section, then the result is validated like a file.
	play := &cfg.Play
	if *pattern != "" {
		play.Pattern = *pattern
	}
	if *format != "" {
		play.Format = *format
	}
	if *width > 0 {
		play.Width = *width
	}
	if *height > 0 {
		play.Height = *height
	}
	if *frames >= 0 {
		play.Frames = *frames
	}
	if *fps > 0 {
		play.FPS = *fps
	}
	if *buffers > 0 {
		play.Buffers = *buffers
	}
	if *display != "" {
		cfg.Display = *display
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := newLogger(cfg.Log, os.Stderr)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runPlayback(ctx, cfg, *memfd, logger); err != nil {
		logger.Error("playback failed", "error", err)
		return 1
	}
	return 0
}

func runPlayback(ctx context.Context, cfg *config.Config, memfd bool, logger *slog.Logger) error {
	var observer *metrics.Presenter
	if cfg.Metrics.Enabled {
		observer = metrics.NewPresenter()
		srv, err := metrics.Listen(cfg.Metrics.Listen, observer, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", srv.Addr())
	}

	var alloc producer.Allocator = producer.MemfdAllocator{}
	if !memfd {
		udma := producer.NewUdmabufAllocator()
		if !udma.Available() {
			return fmt.Errorf("%s is not available; load the udmabuf module or pass --memfd", udma.Device)
		}
		alloc = udma
	}

	pattern, err := producer.NewPattern(cfg.Play.Pattern)
	if err != nil {
		return err
	}
	format, err := cfg.PlayFormat()
	if err != nil {
		return err
	}

	opts := cfg.SessionOptions()
	opts.Logger = logger
	if observer != nil {
		opts.Metrics = observer
	}
	session, err := present.NewSession(ctx, opts)
	if err != nil {
		return err
	}
	defer session.Destroy()

	if !session.FormatSupported(format) {
		logger.Warn("compositor does not advertise the play format", "format", format.String())
	}

	player, err := producer.NewPlayer(ctx, session, alloc, producer.Options{
		Width:   int32(cfg.Play.Width),
		Height:  int32(cfg.Play.Height),
		Format:  format,
		Buffers: cfg.Play.Buffers,
		Frames:  cfg.Play.Frames,
		FPS:     cfg.Play.FPS,
		Pattern: pattern,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	stats, err := player.Run(ctx)
	if cerr := player.Close(); cerr != nil {
		logger.Warn("teardown failed", "error", cerr)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("playback finished",
		"shown", stats.Shown,
		"released", stats.Released,
		"elapsed", stats.Elapsed.Round(time.Millisecond).String(),
	)
	return err
}
