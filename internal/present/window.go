package present

import (
	"context"
	"errors"

	"github.com/1broseidon/wlpresent/internal/wayland"
)

// WindowState tracks the xdg configure handshake.
type WindowState int

const (
	Unconfigured WindowState = iota
	Configured
)

func (s WindowState) String() string {
	if s == Configured {
		return "configured"
	}
	return "unconfigured"
}

// Window is a toplevel surface that shows one FrameBuffer at a time.
type Window struct {
	session *Session

	surface    *wayland.Surface
	viewport   *wayland.Viewport
	xdgSurface *wayland.XdgSurface
	toplevel   *wayland.XdgToplevel

	state  WindowState
	width  int32
	height int32
	// sizeExplicit is set once the compositor chose a size; until then the
	// window follows the shown buffer.
	sizeExplicit bool

	current     *FrameBuffer
	needsAttach bool
	destW       int32
	destH       int32

	destroyed bool
}

// CreateWindow creates a surface, gives it the toplevel role and commits it
// bare so the compositor starts the configure handshake.
func (s *Session) CreateWindow() (*Window, error) {
	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.compositor == nil {
		return nil, &CapabilityError{Missing: []string{wayland.InterfaceCompositor}}
	}
	surface, err := s.compositor.CreateSurface()
	if err != nil {
		return nil, err
	}
	w := &Window{session: s, surface: surface}

	if s.shell != nil {
		if w.xdgSurface, err = s.shell.GetXdgSurface(surface); err != nil {
			w.Destroy()
			return nil, err
		}
		w.xdgSurface.SetHandler(w.handleEvent)
		if w.toplevel, err = w.xdgSurface.GetToplevel(); err != nil {
			w.Destroy()
			return nil, err
		}
		w.toplevel.SetHandler(w.handleEvent)
		w.toplevel.SetTitle(s.opts.Title)
		w.toplevel.SetAppID(s.opts.AppID)
		if err := surface.Commit(); err != nil {
			w.Destroy()
			return nil, err
		}
	}
	if s.viewporter != nil {
		if w.viewport, err = s.viewporter.GetViewport(surface); err != nil {
			w.Destroy()
			return nil, err
		}
	}
	s.flush()
	s.log.Debug("window created", "surface", surface.ID(), "toplevel", w.toplevel != nil, "viewport", w.viewport != nil)
	return w, nil
}

func (w *Window) handleEvent(ev wayland.Event) {
	switch e := ev.(type) {
	case wayland.ToplevelConfigure:
		if e.Width > 0 && e.Height > 0 && (e.Width != w.width || e.Height != w.height) {
			w.width, w.height = e.Width, e.Height
			w.sizeExplicit = true
			w.session.log.Debug("toplevel resized", "width", e.Width, "height", e.Height)
		}
	case wayland.XdgSurfaceConfigure:
		w.xdgSurface.AckConfigure(e.Serial)
		w.state = Configured
		if w.current != nil {
			scaled := w.updateViewport()
			if scaled || w.needsAttach {
				w.commit()
			}
		}
		w.session.flush()
	case wayland.ToplevelClose:
		w.session.log.Info("compositor requested window close")
		w.session.setRunning(false)
	}
}

// Show makes fb the window's content and round-trips so the compositor has
// taken the new frame. release fires with data once the compositor is done
// reading fb.
func (w *Window) Show(ctx context.Context, fb *FrameBuffer, release ReleaseFunc, data any) error {
	if w.destroyed {
		return ErrDestroyed
	}
	if fb == nil || fb.state == bufferDestroyed {
		return ErrDestroyed
	}
	if fb.window != w {
		return errors.New("present: frame buffer belongs to another window")
	}
	fb.beginShow(release, data)
	w.current = fb
	w.needsAttach = true
	if !w.sizeExplicit {
		w.width, w.height = fb.desc.Width, fb.desc.Height
	}
	if w.state == Configured {
		w.updateViewport()
		w.commit()
	}
	w.session.metrics.FrameShown()
	return w.session.roundtrip(ctx)
}

// updateViewport recomputes the scaled destination. It reports whether a new
// destination was sent.
func (w *Window) updateViewport() bool {
	if w.viewport == nil || w.current == nil {
		return false
	}
	vw, vh, ok := FitDestination(w.width, w.height, w.current.desc.Width, w.current.desc.Height)
	if !ok {
		return false
	}
	if err := w.viewport.SetDestination(vw, vh); err != nil {
		w.session.fail(err)
		return false
	}
	w.destW, w.destH = vw, vh
	return true
}

func (w *Window) commit() {
	s := w.session
	if region, err := s.compositor.CreateRegion(); err == nil {
		region.Add(0, 0, w.width, w.height)
		w.surface.SetOpaqueRegion(region)
		region.Destroy()
	}
	if w.needsAttach && w.current != nil {
		w.surface.Attach(w.current.buffer, 0, 0)
		w.needsAttach = false
	}
	w.surface.Damage(0, 0, w.width, w.height)
	if err := w.surface.Commit(); err != nil {
		s.fail(err)
	}
}

// Destroy tears down the toplevel, xdg surface, viewport and surface, then
// round-trips so a release for the last shown buffer is delivered. The shown
// FrameBuffer and its memory are left to the caller.
func (w *Window) Destroy() error {
	if w.destroyed {
		return nil
	}
	w.destroyed = true
	if w.toplevel != nil {
		w.toplevel.Destroy()
	}
	if w.xdgSurface != nil {
		w.xdgSurface.Destroy()
	}
	if w.viewport != nil {
		w.viewport.Destroy()
	}
	w.surface.Destroy()
	w.current = nil

	s := w.session
	if s.destroyed || s.client.Err() != nil {
		return nil
	}
	return s.roundtrip(context.Background())
}

func (w *Window) State() WindowState {
	return w.state
}

// Size is the window size: negotiated with the compositor, or the shown
// buffer's size until the compositor picks one.
func (w *Window) Size() (width, height int32) {
	return w.width, w.height
}

// SizeExplicit reports whether the compositor chose the size.
func (w *Window) SizeExplicit() bool {
	return w.sizeExplicit
}

// Destination is the last viewport destination sent, zero until one was.
func (w *Window) Destination() (width, height int32) {
	return w.destW, w.destH
}

// Current returns the FrameBuffer last shown.
func (w *Window) Current() *FrameBuffer {
	return w.current
}
