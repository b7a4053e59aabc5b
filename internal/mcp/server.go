// Package mcp exposes display probing and test playback as Model Context
// Protocol tools over stdio.
package mcp

import (
	"context"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/wlpresent/internal/config"
	"github.com/1broseidon/wlpresent/internal/present"
	"github.com/1broseidon/wlpresent/internal/producer"
)

const (
	ServerName    = "wlpresent"
	ServerVersion = "0.1.0"

	maxPlayFrames = 3600
)

// Server is the MCP server. Each tool call opens its own Wayland session.
type Server struct {
	mcpServer *mcpsdk.Server
	config    *config.Config
	log       *slog.Logger
	metrics   present.Observer

	// One session at a time; tool calls may arrive concurrently.
	mu sync.Mutex

	// Hooks for tests.
	connect   func(ctx context.Context, opts present.Options) (*present.Session, error)
	allocator producer.Allocator
}

// NewServer builds the server. metrics may be nil.
func NewServer(cfg *config.Config, logger *slog.Logger, metrics present.Observer) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		config:    cfg,
		log:       logger,
		metrics:   metrics,
		connect:   present.NewSession,
		allocator: producer.NewUdmabufAllocator(),
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run serves on stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "probe_display",
		Description: "Connect to a Wayland compositor and report its globals, whether every interface needed for dmabuf presentation is present, and the dmabuf pixel formats it advertises.",
	}, s.handleProbeDisplay)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "check_format",
		Description: "Report whether the compositor advertises a dmabuf pixel format. Accepts a fourcc like XR24, a name like XRGB8888, or a hex code.",
	}, s.handleCheckFormat)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "play_pattern",
		Description: "Open a window and play a CPU-rendered test pattern through imported dmabufs, then report how many frames were shown and released. Requires /dev/udmabuf.",
	}, s.handlePlayPattern)
}

// sessionOptions applies a per-call display override to the configured
// session options.
func (s *Server) sessionOptions(display string) present.Options {
	opts := s.config.SessionOptions()
	if display != "" {
		opts.Display = display
	}
	opts.Logger = s.log
	opts.Metrics = s.metrics
	return opts
}
