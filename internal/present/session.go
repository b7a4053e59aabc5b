// Package present shows caller-owned dmabuf frames in a Wayland toplevel.
//
// A Session binds the compositor globals, a Window owns one xdg toplevel and
// its viewport, and a FrameBuffer is one imported dmabuf that cycles through
// show and release. Everything runs on the caller's goroutine: blocking calls
// flush requests and dispatch events until the reply they wait for arrives.
package present

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/1broseidon/wlpresent/internal/wayland"
	"github.com/1broseidon/wlpresent/internal/wire"
)

const (
	DefaultTitle = "wlpresent"
	DefaultAppID = "wlpresent"

	// Every global is bound at version 1; later versions add nothing used here.
	bindVersion = 1
)

// Options configures a Session.
type Options struct {
	// Display is a socket name, an absolute socket path, or empty for
	// $WAYLAND_DISPLAY.
	Display string
	Title   string
	AppID   string
	// RoundtripTimeout bounds every round-trip the session issues on its own.
	// Zero waits indefinitely.
	RoundtripTimeout time.Duration
	// MaxFormats caps the advertised format list. Zero means
	// DefaultFormatCapacity.
	MaxFormats int
	// StrictFormats rejects buffers whose format was not advertised before
	// sending anything to the compositor.
	StrictFormats bool
	// DebugProtocol logs every request and event at debug level.
	DebugProtocol bool
	Logger        *slog.Logger
	Metrics       Observer
}

// Global is one registry entry seen during session setup.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Session is a connection to the compositor plus the globals a presenter needs.
type Session struct {
	opts    Options
	log     *slog.Logger
	metrics Observer

	client     *wayland.Client
	registry   *wayland.Registry
	compositor *wayland.Compositor
	viewporter *wayland.Viewporter
	shell      *wayland.XdgShell
	dmabuf     *wayland.LinuxDmabuf

	globals   []Global
	formats   *FormatSet
	formatErr error
	running   bool
	destroyed bool
}

// NewSession connects to the compositor and binds its globals. It fails with a
// *CapabilityError when zxdg_shell_v6 or zwp_linux_dmabuf_v1 is missing.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	client, err := wayland.Connect(opts.Display, wayland.Options{
		Logger: opts.Logger,
		Debug:  opts.DebugProtocol,
	})
	if err != nil {
		return nil, err
	}
	return newSession(ctx, client, opts)
}

// NewSessionConn builds a session on an established connection. The session
// takes ownership of conn.
func NewSessionConn(ctx context.Context, conn *wire.Conn, opts Options) (*Session, error) {
	client := wayland.NewClient(conn, wayland.Options{
		Logger: opts.Logger,
		Debug:  opts.DebugProtocol,
	})
	return newSession(ctx, client, opts)
}

func newSession(ctx context.Context, client *wayland.Client, opts Options) (*Session, error) {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.AppID == "" {
		opts.AppID = DefaultAppID
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var obs Observer = nopObserver{}
	if opts.Metrics != nil {
		obs = opts.Metrics
	}
	s := &Session{
		opts:    opts,
		log:     logger,
		metrics: obs,
		client:  client,
		formats: NewFormatSet(opts.MaxFormats),
	}

	registry, err := client.GetRegistry()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}
	registry.SetHandler(s.handleEvent)
	s.registry = registry

	// The first round-trip delivers the globals and binds them; the second
	// collects the dmabuf format events the binds provoke.
	for range 2 {
		if err := s.roundtrip(ctx); err != nil {
			s.Destroy()
			return nil, fmt.Errorf("failed to query compositor globals: %w", err)
		}
	}

	var missing []string
	if s.shell == nil {
		missing = append(missing, wayland.InterfaceXdgShell)
	}
	if s.dmabuf == nil {
		missing = append(missing, wayland.InterfaceLinuxDmabuf)
	}
	if len(missing) > 0 {
		s.Destroy()
		return nil, &CapabilityError{Missing: missing}
	}
	if s.viewporter == nil {
		s.log.Warn("compositor has no wp_viewporter, frames will not be scaled")
	}

	s.setRunning(true)
	s.log.Info("wayland session ready",
		"globals", len(s.globals),
		"formats", s.formats.Len(),
		"viewporter", s.viewporter != nil)
	return s, nil
}

// handleEvent serves the registry, shell and dmabuf objects.
func (s *Session) handleEvent(ev wayland.Event) {
	switch e := ev.(type) {
	case wayland.RegistryGlobal:
		s.globals = append(s.globals, Global{Name: e.Name, Interface: e.Interface, Version: e.Version})
		s.bind(e)
	case wayland.RegistryGlobalRemove:
		s.log.Debug("global removed", "name", e.Name)
	case wayland.ShellPing:
		if err := s.shell.Pong(e.Serial); err != nil {
			s.log.Warn("failed to answer shell ping", "serial", e.Serial, "error", err)
		}
	case wayland.DmabufFormat:
		s.addFormat(Format(e.Format))
	case wayland.DmabufModifier:
		s.addFormat(Format(e.Format))
	}
}

func (s *Session) bind(g wayland.RegistryGlobal) {
	var err error
	switch g.Interface {
	case wayland.InterfaceCompositor:
		if s.compositor == nil {
			s.compositor, err = s.registry.BindCompositor(g.Name, bindVersion)
		}
	case wayland.InterfaceViewporter:
		if s.viewporter == nil {
			s.viewporter, err = s.registry.BindViewporter(g.Name, bindVersion)
		}
	case wayland.InterfaceXdgShell:
		if s.shell == nil {
			s.shell, err = s.registry.BindXdgShell(g.Name, bindVersion)
			if err == nil {
				s.shell.SetHandler(s.handleEvent)
			}
		}
	case wayland.InterfaceLinuxDmabuf:
		if s.dmabuf == nil {
			s.dmabuf, err = s.registry.BindLinuxDmabuf(g.Name, bindVersion)
			if err == nil {
				s.dmabuf.SetHandler(s.handleEvent)
			}
		}
	default:
		return
	}
	if err != nil {
		s.log.Error("failed to bind global", "interface", g.Interface, "name", g.Name, "error", err)
		return
	}
	s.log.Debug("bound global", "interface", g.Interface, "name", g.Name, "version", bindVersion)
}

func (s *Session) addFormat(f Format) {
	if err := s.formats.Add(f); err != nil {
		// Log the first overflow only; compositors repeat formats per modifier.
		if s.formatErr == nil {
			s.log.Warn("dropping advertised pixel format", "format", f.String(), "error", err)
		}
		s.formatErr = err
	}
}

// Destroy releases every global handle and disconnects. Safe to call twice.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.setRunning(false)

	if s.viewporter != nil {
		s.viewporter.Destroy()
	}
	if s.compositor != nil {
		s.compositor.Destroy()
	}
	if s.shell != nil {
		s.shell.Destroy()
	}
	if s.dmabuf != nil {
		s.dmabuf.Destroy()
	}
	if s.registry != nil {
		s.registry.Destroy()
	}
	if err := s.client.Flush(); err != nil && !errors.Is(err, wayland.ErrClosed) {
		s.log.Debug("flush on session teardown failed", "error", err)
	}
	s.client.Close()
	s.log.Debug("wayland session closed")
}

// IsRunning is false after an import failure, a close request, a protocol
// error or connection loss.
func (s *Session) IsRunning() bool {
	return s.running && s.client.Err() == nil
}

func (s *Session) setRunning(running bool) {
	if s.running == running {
		return
	}
	s.running = running
	s.metrics.SessionRunning(running)
}

func (s *Session) FormatSupported(f Format) bool {
	return s.formats.Contains(f)
}

// Formats lists the advertised formats in the order the compositor sent them.
func (s *Session) Formats() []Format {
	return s.formats.Formats()
}

// FormatOverflow returns ErrFormatSetFull if the compositor advertised more
// formats than the session keeps.
func (s *Session) FormatOverflow() error {
	return s.formatErr
}

// Globals lists every registry entry seen, bound or not.
func (s *Session) Globals() []Global {
	return slices.Clone(s.globals)
}

// HasViewporter reports whether frames can be scaled to the window.
func (s *Session) HasViewporter() bool {
	return s.viewporter != nil
}

// Roundtrip waits until the compositor has processed every queued request,
// dispatching events meanwhile. ctx and RoundtripTimeout both bound the wait.
func (s *Session) Roundtrip(ctx context.Context) error {
	if s.destroyed {
		return ErrDestroyed
	}
	return s.roundtrip(ctx)
}

// Dispatch flushes and handles at least one event, then any others already
// received. Only ctx bounds the wait. A deadline expiry is reported as
// wayland.ErrTimeout and a cancellation as ctx.Err(); neither stops the
// session.
func (s *Session) Dispatch(ctx context.Context) error {
	if s.destroyed {
		return ErrDestroyed
	}
	err := s.client.Dispatch(ctx)
	if err == nil {
		err = s.client.DispatchPending()
	}
	if err != nil && !errors.Is(err, wayland.ErrTimeout) && !errors.Is(err, context.Canceled) {
		s.fail(err)
	}
	return err
}

func (s *Session) roundtrip(ctx context.Context) error {
	if s.opts.RoundtripTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RoundtripTimeout)
		defer cancel()
	}
	start := time.Now()
	err := s.client.Roundtrip(ctx)
	s.metrics.Roundtrip(time.Since(start), err)
	if err != nil {
		s.fail(err)
	}
	return err
}

// fail stops the session. An expired round-trip counts: the reply it waited
// for may still arrive and nothing would consume it.
func (s *Session) fail(err error) {
	if s.running {
		s.log.Error("wayland session stopped", "error", err)
	}
	s.setRunning(false)
}

func (s *Session) flush() {
	if err := s.client.Flush(); err != nil {
		s.fail(err)
	}
}
